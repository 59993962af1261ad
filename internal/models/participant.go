package models

import (
	"time"
)

// ParticipantStatus is the registration state of a user on an event.
type ParticipantStatus int

// Registration status constants. The numeric values are part of the wire
// contract with the backend and must not change.
const (
	StatusDeclined  ParticipantStatus = -1 // rejected by the host
	StatusRequested ParticipantStatus = 0  // pending host decision
	StatusJoined    ParticipantStatus = 1  // accepted by the host
)

// String returns a human-readable name for the status.
func (s ParticipantStatus) String() string {
	switch s {
	case StatusDeclined:
		return "declined"
	case StatusRequested:
		return "requested"
	case StatusJoined:
		return "joined"
	default:
		return "unknown"
	}
}

// Valid reports whether the status is one of the three known states.
func (s ParticipantStatus) Valid() bool {
	return s == StatusDeclined || s == StatusRequested || s == StatusJoined
}

// CanTransition reports whether a registration may move from one status to
// another. The only legal transitions are Requested to Joined and Requested
// to Declined; decisions are final.
func CanTransition(from, to ParticipantStatus) bool {
	if from == to {
		return true
	}
	return from == StatusRequested && (to == StatusJoined || to == StatusDeclined)
}

// ColorPair holds the avatar colors assigned to a participant.
type ColorPair struct {
	Background string `json:"background"`
	Foreground string `json:"foreground"`
}

// Participant represents a user's registration on an event.
// At most one entry exists per (event, user) pair.
type Participant struct {
	UserID      string            `json:"user_id"`
	Name        string            `json:"name"`
	Status      ParticipantStatus `json:"status"`
	Colors      ColorPair         `json:"colors"`
	RequestedAt time.Time         `json:"requested_at"`
}
