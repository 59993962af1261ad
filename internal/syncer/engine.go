// Package syncer maintains the per-scope event collections.
//
// Each Engine owns one ordered, de-duplicated slice of events for a single
// collection scope. The slice is fed from two sides that race freely: bulk
// REST loads (wholesale replace) and realtime deltas (in-place merge). The
// rules that keep the two convergent regardless of arrival order are:
// loads replace rather than merge, deltas apply idempotently, and a stale
// load result is discarded by a request-sequence guard.
package syncer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/gatherly/client/internal/models"
)

// Gateway is the slice of the REST client the engine needs.
type Gateway interface {
	ListEvents(ctx context.Context, scope models.Scope, params map[string]string) ([]models.Event, error)
}

// LoadError is a failed bulk load. The collection is cleared when it occurs.
type LoadError struct {
	Scope models.Scope
	Err   error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s events: %v", e.Scope, e.Err)
}

// Unwrap returns the underlying gateway error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Engine synchronizes one scope's event collection.
type Engine struct {
	scope   models.Scope
	gateway Gateway

	mu     sync.Mutex
	events []models.Event

	// seq numbers issued loads; only the most recently issued load may
	// publish its result. An in-flight load is never cancelled, it just
	// loses the race.
	seq uint64

	// pinned detail view, if any
	pinnedID string
	pinned   *models.Event
}

// NewEngine creates an engine for one collection scope.
func NewEngine(scope models.Scope, gateway Gateway) *Engine {
	return &Engine{
		scope:   scope,
		gateway: gateway,
	}
}

// Scope returns the collection scope this engine synchronizes.
func (e *Engine) Scope() models.Scope {
	return e.scope
}

// Events returns a snapshot copy of the current collection.
func (e *Engine) Events() []models.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := make([]models.Event, len(e.events))
	copy(snapshot, e.events)
	return snapshot
}

// Len returns the current collection size.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

// LoadInitial performs the bulk load for this scope and replaces the
// collection wholesale with the sorted result. On failure the collection is
// cleared and a *LoadError is returned. If another LoadInitial was issued
// while this one was in flight, the late result is discarded.
func (e *Engine) LoadInitial(ctx context.Context, params map[string]string) error {
	e.mu.Lock()
	e.seq++
	issued := e.seq
	e.mu.Unlock()

	events, err := e.gateway.ListEvents(ctx, e.scope, params)

	e.mu.Lock()
	defer e.mu.Unlock()

	if issued != e.seq {
		// A newer load was issued while this one was on the wire; its
		// result owns the collection now, whichever resolves first.
		log.Printf("Discarding stale %s load (seq %d, current %d)", e.scope, issued, e.seq)
		return nil
	}

	if err != nil {
		e.events = nil
		return &LoadError{Scope: e.scope, Err: err}
	}

	e.events = make([]models.Event, len(events))
	copy(e.events, events)
	e.sortLocked()
	return nil
}

// ApplyDelta merges one realtime change notification into the collection.
// Unknown actions and payloads without an id are logged and dropped; the
// collection is never left with duplicate ids; applying the same delta
// twice is the same as applying it once.
func (e *Engine) ApplyDelta(delta models.Delta) {
	if delta.Event.ID == "" {
		log.Printf("Dropping %s delta without event id (scope %s)", delta.Action, e.scope)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch delta.Action {
	case models.DeltaCreate:
		// An id collision means the backend raced a create past us (or
		// redelivered); the incoming payload wins, uniqueness holds.
		e.checkTransitionsLocked(delta.Event)
		e.removeLocked(delta.Event.ID)
		e.events = append(e.events, delta.Event)
		e.sortLocked()

	case models.DeltaUpdate:
		idx := e.indexLocked(delta.Event.ID)
		if idx < 0 {
			return
		}
		e.checkTransitionsLocked(delta.Event)
		e.events[idx] = delta.Event
		e.sortLocked()

	case models.DeltaDelete:
		e.removeLocked(delta.Event.ID)

	default:
		log.Printf("Ignoring delta with unknown action %q (scope %s)", delta.Action, e.scope)
	}
}

// Refresh re-runs the bulk load and re-resolves the pinned detail view, if
// any, against the fresh collection. A pinned id that disappeared keeps its
// stale instance.
func (e *Engine) Refresh(ctx context.Context, params map[string]string) error {
	if err := e.LoadInitial(ctx, params); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pinnedID == "" {
		return nil
	}

	if idx := e.indexLocked(e.pinnedID); idx >= 0 {
		fresh := e.events[idx]
		e.pinned = &fresh
	} else {
		log.Printf("Pinned event %s no longer in %s collection, keeping stale copy", e.pinnedID, e.scope)
	}
	return nil
}

// Pin marks one event id as the current detail view. Pinning an id not in
// the collection clears the pinned instance until a refresh finds it.
func (e *Engine) Pin(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pinnedID = id
	e.pinned = nil
	if idx := e.indexLocked(id); idx >= 0 {
		pinned := e.events[idx]
		e.pinned = &pinned
	}
}

// Unpin clears the detail view.
func (e *Engine) Unpin() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinnedID = ""
	e.pinned = nil
}

// Pinned returns the pinned event instance, or nil when nothing is pinned.
func (e *Engine) Pinned() *models.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pinned == nil {
		return nil
	}
	pinned := *e.pinned
	return &pinned
}

// indexLocked returns the position of the event with the given id, or -1.
func (e *Engine) indexLocked(id string) int {
	for i := range e.events {
		if e.events[i].ID == id {
			return i
		}
	}
	return -1
}

// removeLocked deletes the event with the given id if present.
func (e *Engine) removeLocked(id string) {
	idx := e.indexLocked(id)
	if idx < 0 {
		return
	}
	e.events = append(e.events[:idx], e.events[idx+1:]...)
}

// sortLocked orders the collection by start time: ascending for upcoming
// scopes, descending for history. Events without a start time sort last in
// both directions; ties keep their previous relative order.
func (e *Engine) sortLocked() {
	descending := e.scope.Descending()
	sort.SliceStable(e.events, func(i, j int) bool {
		a, b := e.events[i].StartsAt, e.events[j].StartsAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		case descending:
			return a.After(*b)
		default:
			return a.Before(*b)
		}
	})
}

// checkTransitionsLocked flags registration status transitions the incoming
// payload makes that the state machine forbids (a final decision being
// reversed). The payload is still applied, the server is authoritative for
// its own data, but the violation is recorded.
func (e *Engine) checkTransitionsLocked(incoming models.Event) {
	idx := e.indexLocked(incoming.ID)
	if idx < 0 {
		return
	}
	current := e.events[idx]

	for _, p := range incoming.Participants {
		existing := current.Participant(p.UserID)
		if existing == nil {
			continue
		}
		if !models.CanTransition(existing.Status, p.Status) {
			log.Printf("Invariant violation: participant %s on event %s moved %s -> %s",
				p.UserID, incoming.ID, existing.Status, p.Status)
		}
	}
}
