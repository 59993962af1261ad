package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_RequestedDecisionsOnly(t *testing.T) {
	tests := []struct {
		name string
		from ParticipantStatus
		to   ParticipantStatus
		want bool
	}{
		{"requested to joined", StatusRequested, StatusJoined, true},
		{"requested to declined", StatusRequested, StatusDeclined, true},
		{"declined to joined is final", StatusDeclined, StatusJoined, false},
		{"joined to declined is final", StatusJoined, StatusDeclined, false},
		{"declined back to requested", StatusDeclined, StatusRequested, false},
		{"joined back to requested", StatusJoined, StatusRequested, false},
		{"same state is allowed", StatusJoined, StatusJoined, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestParticipantStatus_WireValues(t *testing.T) {
	// The numeric values are the backend's wire contract.
	assert.Equal(t, ParticipantStatus(-1), StatusDeclined)
	assert.Equal(t, ParticipantStatus(0), StatusRequested)
	assert.Equal(t, ParticipantStatus(1), StatusJoined)

	assert.True(t, StatusJoined.Valid())
	assert.False(t, ParticipantStatus(2).Valid())
	assert.Equal(t, "unknown", ParticipantStatus(7).String())
}

func TestEvent_AcceptedCount(t *testing.T) {
	e := Event{Participants: []Participant{
		{UserID: "u1", Status: StatusJoined},
		{UserID: "u2", Status: StatusRequested},
		{UserID: "u3", Status: StatusJoined},
		{UserID: "u4", Status: StatusDeclined},
	}}

	assert.Equal(t, 2, e.AcceptedCount())
	assert.Equal(t, StatusRequested, e.Participant("u2").Status)
	assert.Nil(t, e.Participant("stranger"))
}

func TestEvent_HasValidWindow(t *testing.T) {
	start := time.Date(2026, 4, 1, 19, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	assert.True(t, (&Event{StartsAt: &start, EndsAt: &end}).HasValidWindow())
	assert.False(t, (&Event{StartsAt: &end, EndsAt: &start}).HasValidWindow(), "end must be after start")
	assert.False(t, (&Event{StartsAt: &start}).HasValidWindow())
	assert.False(t, (&Event{}).HasValidWindow())
}
