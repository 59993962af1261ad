// Package app owns the client's authentication state machine.
//
// The machine sequences startup (validate persisted session, fetch
// identity, unlock the UI) and exposes the authentication state to every
// view through subscriptions. It is the only component besides the
// gateway's 401/403 handler allowed to write the session store.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gatherly/client/internal/api"
	"github.com/gatherly/client/internal/models"
	"github.com/gatherly/client/internal/session"
)

// State is the app's authentication state.
type State string

// App state constants. Initializing is entered at most once per process;
// after the first run the machine only moves between Authenticated and
// Unauthenticated.
const (
	StateUninitialized   State = "uninitialized"
	StateInitializing    State = "initializing"
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
)

// Gateway is the slice of the REST client the machine needs.
type Gateway interface {
	Login(ctx context.Context, creds api.Credentials) (string, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)
}

// Machine is the auth/app state machine.
type Machine struct {
	gateway  Gateway
	sessions session.Store

	mu          sync.Mutex
	state       State
	user        *models.User
	started     bool
	listeners   map[uint64]func(State)
	listenerSeq uint64
}

// NewMachine creates a machine in the Uninitialized state.
func NewMachine(gateway Gateway, sessions session.Store) *Machine {
	return &Machine{
		gateway:   gateway,
		sessions:  sessions,
		state:     StateUninitialized,
		listeners: make(map[uint64]func(State)),
	}
}

// State returns the current app state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsAuthenticated reports whether a user is signed in.
func (m *Machine) IsAuthenticated() bool {
	return m.State() == StateAuthenticated
}

// User returns a copy of the current identity, or nil when signed out.
func (m *Machine) User() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil {
		return nil
	}
	user := *m.user
	return &user
}

// Subscribe registers a listener notified on every state transition.
// The returned func removes the listener.
func (m *Machine) Subscribe(listener func(State)) func() {
	m.mu.Lock()
	m.listenerSeq++
	id := m.listenerSeq
	m.listeners[id] = listener
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Initialize runs the startup sequence: read the persisted token, validate
// it by fetching the identity, and settle into Authenticated or
// Unauthenticated. Duplicate calls after the first are no-ops. Failures are
// swallowed after logging; the machine simply ends up Unauthenticated with
// the dead token cleared.
func (m *Machine) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.transition(StateInitializing)

	token, ok := m.sessions.Token()
	if !ok || token == "" {
		// No persisted session, nothing to validate.
		m.transition(StateUnauthenticated)
		return
	}

	user, err := m.gateway.Me(ctx)
	if err != nil {
		log.Printf("Startup session validation failed: %v", err)
		if clearErr := m.sessions.Clear(); clearErr != nil {
			log.Printf("Failed to clear stale session: %v", clearErr)
		}
		m.transition(StateUnauthenticated)
		return
	}

	m.setUser(user)
	m.transition(StateAuthenticated)
}

// Login authenticates with the backend, persists the issued token, then
// fetches the identity. A login whose identity fetch fails is rolled back
// entirely: the token is cleared and the error returned.
func (m *Machine) Login(ctx context.Context, creds api.Credentials) (*models.User, error) {
	token, err := m.gateway.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}

	if err := m.sessions.SetToken(token); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}

	user, err := m.gateway.Me(ctx)
	if err != nil {
		// Login without an identity is not a login.
		if clearErr := m.sessions.Clear(); clearErr != nil {
			log.Printf("Failed to clear session after identity fetch failure: %v", clearErr)
		}
		return nil, fmt.Errorf("fetching identity after login: %w", err)
	}

	m.setUser(user)
	m.transition(StateAuthenticated)
	return user, nil
}

// Logout invalidates the session remotely on a best-effort basis and always
// clears local state synchronously.
func (m *Machine) Logout(ctx context.Context) {
	if err := m.gateway.Logout(ctx); err != nil {
		log.Printf("Remote logout failed (ignored): %v", err)
	}

	if err := m.sessions.Clear(); err != nil {
		log.Printf("Failed to clear session on logout: %v", err)
	}

	m.setUser(nil)
	m.transition(StateUnauthenticated)
}

// SessionExpired drops into Unauthenticated after the gateway reported a
// 401/403. The gateway has already cleared the persisted token by the time
// this runs; only the in-memory identity and state remain to reset.
func (m *Machine) SessionExpired() {
	m.mu.Lock()
	expired := m.state == StateAuthenticated
	m.mu.Unlock()

	if !expired {
		return
	}

	log.Println("Session expired, signing out")
	m.setUser(nil)
	m.transition(StateUnauthenticated)
}

// setUser replaces the current identity.
func (m *Machine) setUser(user *models.User) {
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
}

// transition moves to the given state and notifies listeners outside the
// lock, so a listener may call back into the machine.
func (m *Machine) transition(state State) {
	m.mu.Lock()
	m.state = state
	listeners := make([]func(State), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}
