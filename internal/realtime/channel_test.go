package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/client/internal/models"
	"github.com/gatherly/client/internal/session"
)

// fakeHub is a websocket push hub for tests: it accepts connections on the
// hub endpoint, records handshake headers, and can push frames.
type fakeHub struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	connects int
	headers  []string
	conns    []*websocket.Conn
}

func newFakeHub(t *testing.T) *fakeHub {
	t.Helper()
	hub := &fakeHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	router := http.NewServeMux()
	router.HandleFunc(hubPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := hub.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		hub.mu.Lock()
		hub.connects++
		hub.headers = append(hub.headers, r.Header.Get("Authorization"))
		hub.conns = append(hub.conns, conn)
		hub.mu.Unlock()

		// Read pump keeps control frames (ping/pong, close) serviced.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	hub.server = httptest.NewServer(router)
	t.Cleanup(func() {
		hub.mu.Lock()
		for _, c := range hub.conns {
			c.Close()
		}
		hub.mu.Unlock()
		hub.server.Close()
	})
	return hub
}

// url returns the hub base URL in websocket form.
func (h *fakeHub) url() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http")
}

func (h *fakeHub) connectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connects
}

func (h *fakeHub) lastHeader() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.headers) == 0 {
		return ""
	}
	return h.headers[len(h.headers)-1]
}

// push writes a raw frame on the most recent connection.
func (h *fakeHub) push(t *testing.T, frame string) {
	t.Helper()
	h.mu.Lock()
	require.NotEmpty(t, h.conns, "no client connected")
	conn := h.conns[len(h.conns)-1]
	h.mu.Unlock()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func waitConnected(t *testing.T, c *Channel) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == StateConnected },
		2*time.Second, 10*time.Millisecond, "channel never connected")
}

func TestStart_RapidDuplicateCallsDialOnce(t *testing.T) {
	hub := newFakeHub(t)
	channel := NewChannel(hub.url(), session.NewMemoryStore())
	defer channel.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			channel.Start()
		}()
	}
	wg.Wait()
	waitConnected(t, channel)

	// Give any stray dial a moment to show up.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, hub.connectCount(), "duplicate Start calls must not open extra connections")
}

func TestDial_ReadsTokenAtConnectTime(t *testing.T) {
	hub := newFakeHub(t)
	sessions := session.NewMemoryStore()

	// The channel exists before anyone logged in; the token set afterwards
	// must still reach the handshake.
	channel := NewChannel(hub.url(), sessions)
	require.NoError(t, sessions.SetToken("tok-later"))

	channel.Start()
	defer channel.Stop()
	waitConnected(t, channel)

	assert.Equal(t, "Bearer tok-later", hub.lastHeader())
}

func TestSubscribe_ReceivesDecodedDeltas(t *testing.T) {
	hub := newFakeHub(t)
	channel := NewChannel(hub.url(), session.NewMemoryStore())
	defer channel.Stop()

	deltas := make(chan models.Delta, 1)
	channel.Subscribe(func(d models.Delta) { deltas <- d })

	channel.Start()
	waitConnected(t, channel)

	hub.push(t, `{"topic":"event.changed","payload":{"action":"update","event":{"Id":"ev-1","Title":"Renamed"}}}`)

	select {
	case d := <-deltas:
		assert.Equal(t, models.DeltaUpdate, d.Action)
		assert.Equal(t, "ev-1", d.Event.ID)
		assert.Equal(t, "Renamed", d.Event.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("delta never delivered")
	}
}

func TestSubscribe_MalformedFramesAreDroppedNotFatal(t *testing.T) {
	hub := newFakeHub(t)
	channel := NewChannel(hub.url(), session.NewMemoryStore())
	defer channel.Stop()

	deltas := make(chan models.Delta, 1)
	channel.Subscribe(func(d models.Delta) { deltas <- d })

	channel.Start()
	waitConnected(t, channel)

	hub.push(t, `{not json`)
	hub.push(t, `{"topic":"event.changed","payload":"not an object"}`)
	hub.push(t, `{"topic":"something.else","payload":{}}`)
	hub.push(t, `{"topic":"event.changed","payload":{"action":"delete","event":{"id":"ev-9"}}}`)

	select {
	case d := <-deltas:
		assert.Equal(t, models.DeltaDelete, d.Action)
		assert.Equal(t, "ev-9", d.Event.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("channel stopped delivering after malformed frames")
	}
	assert.Equal(t, StateConnected, channel.State())
}

func TestSubscribe_ReplacesPreviousHandler(t *testing.T) {
	hub := newFakeHub(t)
	channel := NewChannel(hub.url(), session.NewMemoryStore())
	defer channel.Stop()

	first := make(chan models.Delta, 1)
	second := make(chan models.Delta, 1)

	unsubscribeFirst := channel.Subscribe(func(d models.Delta) { first <- d })
	channel.Subscribe(func(d models.Delta) { second <- d })

	// The first handler's unsubscribe handle is stale; it must not detach
	// the replacement.
	unsubscribeFirst()

	channel.Start()
	waitConnected(t, channel)
	hub.push(t, `{"topic":"event.changed","payload":{"action":"create","event":{"id":"ev-1"}}}`)

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement handler never fired")
	}
	assert.Empty(t, first, "replaced handler must not receive messages")
}

func TestReconnect_AfterConnectionDrop(t *testing.T) {
	hub := newFakeHub(t)
	channel := NewChannel(hub.url(), session.NewMemoryStore())
	defer channel.Stop()

	channel.Start()
	waitConnected(t, channel)

	// Kill the connection server-side; the first retry is immediate.
	hub.mu.Lock()
	hub.conns[0].Close()
	hub.mu.Unlock()

	require.Eventually(t, func() bool { return hub.connectCount() == 2 },
		3*time.Second, 10*time.Millisecond, "channel never reconnected")
	waitConnected(t, channel)
}

func TestStop_WhenDisconnectedIsNoOp(t *testing.T) {
	channel := NewChannel("ws://127.0.0.1:1/nowhere", session.NewMemoryStore())
	assert.Equal(t, StateDisconnected, channel.State())
	channel.Stop()
	channel.Stop()
	assert.Equal(t, StateDisconnected, channel.State())
}

func TestStop_TearsDownAndDetachesHandler(t *testing.T) {
	hub := newFakeHub(t)
	channel := NewChannel(hub.url(), session.NewMemoryStore())

	received := make(chan models.Delta, 1)
	channel.Subscribe(func(d models.Delta) { received <- d })

	channel.Start()
	waitConnected(t, channel)

	channel.Stop()
	assert.Equal(t, StateDisconnected, channel.State())

	// A restart must dial again and come back clean.
	channel.Start()
	defer channel.Stop()
	require.Eventually(t, func() bool { return hub.connectCount() == 2 },
		2*time.Second, 10*time.Millisecond)

	hub.push(t, `{"topic":"event.changed","payload":{"action":"create","event":{"id":"ev-1"}}}`)
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, received, "Stop must unsubscribe handlers")
}
