package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_DeliversToListener(t *testing.T) {
	n := NewNotifier()

	var got []Notice
	n.Subscribe(func(notice Notice) { got = append(got, notice) })

	n.Success("event created")
	n.Error("event is full")

	require.Len(t, got, 2)
	assert.Equal(t, Notice{Type: NoticeSuccess, Message: "event created"}, got[0])
	assert.Equal(t, Notice{Type: NoticeError, Message: "event is full"}, got[1])
}

func TestPublish_WithoutListenerIsDropped(t *testing.T) {
	n := NewNotifier()
	// Must not panic; the notice is logged and lost.
	n.Error("nobody is listening")
}

func TestSubscribe_ReplacesListenerAndUnsubscribes(t *testing.T) {
	n := NewNotifier()

	var first, second int
	n.Subscribe(func(Notice) { first++ })
	unsubscribe := n.Subscribe(func(Notice) { second++ })

	n.Success("one")
	assert.Zero(t, first, "replaced listener must not fire")
	assert.Equal(t, 1, second)

	unsubscribe()
	n.Success("two")
	assert.Equal(t, 1, second, "unsubscribed listener must not fire")
}
