// Package realtime maintains the push connection to the notification hub.
//
// The channel is a long-lived websocket client. It re-reads the session
// token from the store on every dial, so a login that happens after the
// channel was constructed is picked up on the next connect. Reconnects
// follow a fixed backoff schedule; when the schedule is exhausted the
// channel gives up and goes Disconnected.
package realtime

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"

	"github.com/gatherly/client/internal/models"
	"github.com/gatherly/client/internal/session"
)

// State is the channel's connection state.
type State string

// Connection state constants
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// hubPath is the hub endpoint the channel subscribes to.
const hubPath = "/hub/events"

// backoffSchedule spaces reconnection attempts: immediate first, then
// increasing delays. Six consecutive failures exhaust the schedule.
var backoffSchedule = []time.Duration{
	0,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	30 * time.Second,
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	probeSpec  = "@every 15s"
)

// Channel is the realtime push connection.
type Channel struct {
	hubURL   string
	sessions session.Store
	dialer   *websocket.Dialer

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	stop       chan struct{}
	probe      *cron.Cron
	handler    func(models.Delta)
	handlerSeq uint64
}

// NewChannel creates a channel against the given hub base URL (ws:// or
// wss://). The connection is not opened until Start.
func NewChannel(hubURL string, sessions session.Store) *Channel {
	return &Channel{
		hubURL:   hubURL,
		sessions: sessions,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
		state: StateDisconnected,
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the connection. Calling Start while the channel is already
// connecting or connected is a no-op; UI mount/unmount cycles may call it
// concurrently and must not produce duplicate connection attempts.
func (c *Channel) Start() {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.stop = make(chan struct{})
	stop := c.stop

	c.probe = cron.New()
	c.probe.AddFunc(probeSpec, c.logStatus)
	c.probe.Start()
	c.mu.Unlock()

	go c.run(stop)
}

// Stop tears the connection down and detaches the subscribed handler.
// Calling Stop while already Disconnected is a no-op.
func (c *Channel) Stop() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}

	close(c.stop)
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.probe != nil {
		c.probe.Stop()
		c.probe = nil
	}
	c.handler = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	log.Println("Realtime channel stopped")
}

// Subscribe registers the handler for event-change messages, replacing any
// previous one. The returned func unsubscribes, unless a later Subscribe
// has already replaced this handler.
func (c *Channel) Subscribe(handler func(models.Delta)) func() {
	c.mu.Lock()
	c.handlerSeq++
	seq := c.handlerSeq
	c.handler = handler
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.handlerSeq == seq {
			c.handler = nil
		}
	}
}

// run drives the connect/reconnect loop until stopped or the backoff
// schedule is exhausted.
func (c *Channel) run(stop chan struct{}) {
	attempt := 0

	for {
		if attempt >= len(backoffSchedule) {
			log.Printf("Realtime reconnect schedule exhausted after %d attempts", attempt)
			c.giveUp(stop)
			return
		}

		if delay := backoffSchedule[attempt]; delay > 0 {
			select {
			case <-stop:
				return
			case <-time.After(delay):
			}
		}

		conn, err := c.dial()
		if err != nil {
			log.Printf("Realtime connect failed (attempt %d): %v", attempt+1, err)
			attempt++
			continue
		}

		if !c.attach(stop, conn) {
			conn.Close()
			return
		}

		c.readLoop(conn, stop)

		select {
		case <-stop:
			return
		default:
		}

		// Connection dropped; retry from the top of the schedule with an
		// immediate attempt.
		c.setState(stop, StateReconnecting)
		attempt = 0
	}
}

// dial opens one websocket connection, reading the session token at call
// time so a post-construction login is honored.
func (c *Channel) dial() (*websocket.Conn, error) {
	header := http.Header{}
	if token, ok := c.sessions.Token(); ok {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := c.dialer.Dial(c.hubURL+hubPath, header)
	return conn, err
}

// attach records the live connection and marks the channel Connected.
// Returns false if Stop won the race.
func (c *Channel) attach(stop chan struct{}, conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-stop:
		return false
	default:
	}

	c.conn = conn
	c.state = StateConnected
	log.Printf("Realtime channel connected to %s", c.hubURL)
	return true
}

// readLoop pumps messages from the connection until it drops or the
// channel is stopped. Malformed frames are logged and dropped.
func (c *Channel) readLoop(conn *websocket.Conn, stop chan struct{}) {
	done := make(chan struct{})
	defer close(done)
	go c.pingLoop(conn, stop, done)

	conn.SetReadLimit(65536)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Realtime read error: %v", err)
			}
			return
		}

		delta, ok, err := decodeDelta(frame)
		if err != nil {
			log.Printf("Dropping malformed realtime message: %v", err)
			continue
		}
		if !ok {
			continue
		}

		c.mu.Lock()
		handler := c.handler
		c.mu.Unlock()

		if handler != nil {
			handler(delta)
		}
	}
}

// pingLoop keeps the connection alive from the client side.
func (c *Channel) pingLoop(conn *websocket.Conn, stop, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-stop:
			return
		case <-done:
			return
		}
	}
}

// setState transitions the state unless Stop already closed the channel.
func (c *Channel) setState(stop chan struct{}, state State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-stop:
		return
	default:
	}
	c.state = state
	c.conn = nil
}

// giveUp marks the channel Disconnected after an exhausted schedule.
func (c *Channel) giveUp(stop chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-stop:
		return
	default:
	}

	c.state = StateDisconnected
	c.conn = nil
	if c.probe != nil {
		c.probe.Stop()
		c.probe = nil
	}
}

// logStatus is the periodic, read-only connection status probe.
func (c *Channel) logStatus() {
	log.Printf("Realtime channel status: %s", c.State())
}
