package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gatherly/client/internal/models"
)

// Paths for each collection scope's bulk query.
var scopePaths = map[models.Scope]string{
	models.ScopeBrowse:         "/api/events/browse",
	models.ScopeRegistered:     "/api/events/registered",
	models.ScopeHostedUpcoming: "/api/events/hosted/upcoming",
	models.ScopeHostedPast:     "/api/events/hosted/past",
	models.ScopeHistory:        "/api/events/history",
}

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse carries the opaque session token issued by the backend.
type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a session token. The token is returned to
// the caller, not stored; persisting it is the state machine's decision.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	var resp loginResponse
	if err := c.post(ctx, "/api/auth/login", creds, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return resp.Token, nil
}

// Logout invalidates the session on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "/api/auth/logout", nil, nil)
}

// Me fetches the current identity for the session token.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var dto UserDTO
	if err := c.get(ctx, "/api/users/me", &dto); err != nil {
		return nil, err
	}
	return &dto.User, nil
}

// ListEvents performs the bulk query for one collection scope. The result is
// always a slice, even when the backend answered with a single object.
func (c *Client) ListEvents(ctx context.Context, scope models.Scope, params map[string]string) ([]models.Event, error) {
	path, ok := scopePaths[scope]
	if !ok {
		return nil, fmt.Errorf("unknown scope %q", scope)
	}

	if len(params) > 0 {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		path += "?" + query.Encode()
	}

	var list EventList
	if err := c.get(ctx, path, &list); err != nil {
		return nil, err
	}
	return list.Events, nil
}

// GetEvent fetches a single event by id.
func (c *Client) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var dto EventDTO
	if err := c.get(ctx, "/api/events/"+url.PathEscape(id), &dto); err != nil {
		return nil, err
	}
	return &dto.Event, nil
}

// EventDraft is the outbound payload for creating or editing an event.
type EventDraft struct {
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	StartsAt              *time.Time `json:"startTime,omitempty"`
	EndsAt                *time.Time `json:"endTime,omitempty"`
	Visibility            string     `json:"visibility"`
	AcceptingParticipants bool       `json:"acceptingParticipants"`
	MeetingLink           *string    `json:"meetingLink,omitempty"`
	ImageID               *string    `json:"imageId,omitempty"`
}

// CreateEvent creates a new hosted event and returns the stored instance.
func (c *Client) CreateEvent(ctx context.Context, draft EventDraft) (*models.Event, error) {
	var dto EventDTO
	if err := c.post(ctx, "/api/events", draft, &dto); err != nil {
		return nil, err
	}
	return &dto.Event, nil
}

// UpdateEvent edits an existing event and returns the stored instance.
func (c *Client) UpdateEvent(ctx context.Context, id string, draft EventDraft) (*models.Event, error) {
	var dto EventDTO
	if err := c.put(ctx, "/api/events/"+url.PathEscape(id), draft, &dto); err != nil {
		return nil, err
	}
	return &dto.Event, nil
}

// Apply registers the current user's participation request on an event.
func (c *Client) Apply(ctx context.Context, eventID string) error {
	return c.post(ctx, "/api/events/"+url.PathEscape(eventID)+"/apply", nil, nil)
}

// Accept approves a pending participant request (host only).
func (c *Client) Accept(ctx context.Context, eventID, userID string) error {
	path := fmt.Sprintf("/api/events/%s/participants/%s/accept",
		url.PathEscape(eventID), url.PathEscape(userID))
	return c.post(ctx, path, nil, nil)
}

// Reject declines a pending participant request (host only).
func (c *Client) Reject(ctx context.Context, eventID, userID string) error {
	path := fmt.Sprintf("/api/events/%s/participants/%s/reject",
		url.PathEscape(eventID), url.PathEscape(userID))
	return c.post(ctx, path, nil, nil)
}
