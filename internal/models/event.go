// Package models contains the domain models for the client.
package models

import (
	"time"
)

// Event represents a hosted event as seen by the client.
// Instances are created from gateway responses and mutated only by the
// synchronization engine (delta application or refresh), never by views.
type Event struct {
	ID                    string        `json:"id"`
	Title                 string        `json:"title"`
	Description           string        `json:"description"`
	StartsAt              *time.Time    `json:"starts_at,omitempty"`
	EndsAt                *time.Time    `json:"ends_at,omitempty"`
	Visibility            string        `json:"visibility"`
	AcceptingParticipants bool          `json:"accepting_participants"`
	OrganizerID           string        `json:"organizer_id"`
	OrganizerName         string        `json:"organizer_name,omitempty"`
	MeetingLink           *string       `json:"meeting_link,omitempty"`
	ImageID               *string       `json:"image_id,omitempty"`
	Active                bool          `json:"active"`
	Participants          []Participant `json:"participants,omitempty"`
}

// Visibility constants
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// AcceptedCount returns the number of participants the host has accepted.
func (e *Event) AcceptedCount() int {
	count := 0
	for _, p := range e.Participants {
		if p.Status == StatusJoined {
			count++
		}
	}
	return count
}

// Participant returns the participant entry for the given user id,
// or nil if the user has no registration on this event.
func (e *Event) Participant(userID string) *Participant {
	for i := range e.Participants {
		if e.Participants[i].UserID == userID {
			return &e.Participants[i]
		}
	}
	return nil
}

// HasValidWindow reports whether the event's time window is well-formed
// (both instants present and end strictly after start).
func (e *Event) HasValidWindow() bool {
	if e.StartsAt == nil || e.EndsAt == nil {
		return false
	}
	return e.EndsAt.After(*e.StartsAt)
}
