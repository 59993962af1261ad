// Package command executes user-intent commands against the backend.
//
// Every command follows the same documented sequence: validate local
// preconditions, call the gateway, refresh the affected scope exactly once
// on success, surface a typed error without touching local collections on
// failure. The actor's own action is not guaranteed to echo back on the
// realtime channel, which is why the refresh is mandatory rather than an
// optimization.
package command

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gatherly/client/internal/api"
	"github.com/gatherly/client/internal/app"
	"github.com/gatherly/client/internal/models"
	"github.com/gatherly/client/internal/notify"
)

// Action identifies a user-intent command.
type Action string

// Command action constants
const (
	ActionApply  Action = "apply"
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
)

// ValidationError is a client-side precondition failure. It is raised
// before any network call and surfaced inline, never toasted.
type ValidationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// ErrInFlight rejects a command while an identical one is pending.
var ErrInFlight = &ValidationError{Reason: "an identical command is already in flight"}

// Gateway is the slice of the REST client the runner needs.
type Gateway interface {
	Apply(ctx context.Context, eventID string) error
	Accept(ctx context.Context, eventID, userID string) error
	Reject(ctx context.Context, eventID, userID string) error
	CreateEvent(ctx context.Context, draft api.EventDraft) (*models.Event, error)
	UpdateEvent(ctx context.Context, id string, draft api.EventDraft) (*models.Event, error)
}

// Refresher is the slice of a scope's synchronization engine the runner
// needs after a successful command.
type Refresher interface {
	Refresh(ctx context.Context, params map[string]string) error
}

// Command is one user intent aimed at one scope.
type Command struct {
	Action        Action
	EventID       string
	ParticipantID string
	Draft         *api.EventDraft
	Scope         models.Scope
	Params        map[string]string
}

// key identifies the in-flight guard slot for a command. Only one command
// per (event id, action) pair may be pending at a time.
func (c Command) key() string {
	return c.EventID + "/" + string(c.Action)
}

// Runner executes commands with an in-flight guard.
type Runner struct {
	gateway  Gateway
	machine  *app.Machine
	notifier *notify.Notifier
	engines  map[models.Scope]Refresher

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewRunner creates a runner over the given engines, one per scope the
// runner may refresh.
func NewRunner(gateway Gateway, machine *app.Machine, notifier *notify.Notifier, engines map[models.Scope]Refresher) *Runner {
	return &Runner{
		gateway:  gateway,
		machine:  machine,
		notifier: notifier,
		engines:  engines,
		inFlight: make(map[string]struct{}),
	}
}

// Execute runs one command end to end.
func (r *Runner) Execute(ctx context.Context, cmd Command) error {
	if err := r.validate(cmd); err != nil {
		return err
	}

	if !r.reserve(cmd) {
		return ErrInFlight
	}
	defer r.release(cmd)

	if err := r.dispatch(ctx, cmd); err != nil {
		if api.IsAuthError(err) {
			r.machine.SessionExpired()
		}
		r.notifier.Error(userMessage(err))
		return err
	}

	// Refresh exactly once per successful command; the realtime echo may
	// be late or absent for the actor's own action.
	engine, ok := r.engines[cmd.Scope]
	if !ok {
		log.Printf("No engine registered for scope %s, skipping refresh", cmd.Scope)
		return nil
	}
	if err := engine.Refresh(ctx, cmd.Params); err != nil {
		r.notifier.Error(userMessage(err))
		return fmt.Errorf("refreshing after %s: %w", cmd.Action, err)
	}

	return nil
}

// validate checks local preconditions before any network traffic.
func (r *Runner) validate(cmd Command) error {
	if r.machine.User() == nil {
		return &ValidationError{Reason: "no signed-in user"}
	}
	if !cmd.Scope.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown scope %q", cmd.Scope)}
	}

	switch cmd.Action {
	case ActionApply:
		if cmd.EventID == "" {
			return &ValidationError{Reason: "apply requires an event id"}
		}
	case ActionAccept, ActionReject:
		if cmd.EventID == "" || cmd.ParticipantID == "" {
			return &ValidationError{Reason: string(cmd.Action) + " requires an event id and a participant id"}
		}
	case ActionCreate:
		if cmd.Draft == nil {
			return &ValidationError{Reason: "create requires an event draft"}
		}
	case ActionEdit:
		if cmd.EventID == "" || cmd.Draft == nil {
			return &ValidationError{Reason: "edit requires an event id and a draft"}
		}
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown action %q", cmd.Action)}
	}

	return nil
}

// dispatch issues the gateway call for the command.
func (r *Runner) dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case ActionApply:
		return r.gateway.Apply(ctx, cmd.EventID)
	case ActionAccept:
		return r.gateway.Accept(ctx, cmd.EventID, cmd.ParticipantID)
	case ActionReject:
		return r.gateway.Reject(ctx, cmd.EventID, cmd.ParticipantID)
	case ActionCreate:
		_, err := r.gateway.CreateEvent(ctx, *cmd.Draft)
		return err
	case ActionEdit:
		_, err := r.gateway.UpdateEvent(ctx, cmd.EventID, *cmd.Draft)
		return err
	}
	return &ValidationError{Reason: fmt.Sprintf("unknown action %q", cmd.Action)}
}

// reserve claims the in-flight slot for the command.
func (r *Runner) reserve(cmd Command) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := cmd.key()
	if _, pending := r.inFlight[key]; pending {
		return false
	}
	r.inFlight[key] = struct{}{}
	return true
}

// release frees the in-flight slot.
func (r *Runner) release(cmd Command) {
	r.mu.Lock()
	delete(r.inFlight, cmd.key())
	r.mu.Unlock()
}

// userMessage extracts the text to toast for an error: the server's own
// words for business errors, the error string otherwise.
func userMessage(err error) string {
	if apiErr, ok := api.AsAPIError(err); ok {
		return apiErr.Body
	}
	return err.Error()
}
