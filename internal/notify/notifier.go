// Package notify provides the lightweight toast signal channel.
//
// Any component may publish a success or error notice; a single global
// listener (the UI layer) displays it for DisplayDuration and dismisses it.
package notify

import (
	"log"
	"sync"
	"time"
)

// NoticeType identifies the kind of toast to display.
type NoticeType string

// Notice type constants
const (
	NoticeSuccess NoticeType = "success"
	NoticeError   NoticeType = "error"
)

// DisplayDuration is how long the UI keeps a notice visible.
const DisplayDuration = 5 * time.Second

// Notice is a user-visible toast message.
type Notice struct {
	Type    NoticeType `json:"type"`
	Message string     `json:"message"`
}

// Notifier fans notices out to the registered listener.
type Notifier struct {
	mu       sync.RWMutex
	listener func(Notice)
}

// NewNotifier creates a notifier with no listener attached.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers the global toast listener, replacing any previous one.
// It returns a func that detaches the listener.
func (n *Notifier) Subscribe(listener func(Notice)) func() {
	n.mu.Lock()
	n.listener = listener
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		n.listener = nil
		n.mu.Unlock()
	}
}

// Publish delivers a notice to the listener. Notices published while no
// listener is attached are logged and dropped.
func (n *Notifier) Publish(notice Notice) {
	n.mu.RLock()
	listener := n.listener
	n.mu.RUnlock()

	if listener == nil {
		log.Printf("Notice dropped (no listener): [%s] %s", notice.Type, notice.Message)
		return
	}
	listener(notice)
}

// Success publishes a success notice.
func (n *Notifier) Success(message string) {
	n.Publish(Notice{Type: NoticeSuccess, Message: message})
}

// Error publishes an error notice.
func (n *Notifier) Error(message string) {
	n.Publish(Notice{Type: NoticeError, Message: message})
}
