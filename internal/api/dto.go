package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gatherly/client/internal/models"
)

// The backend is inconsistent about field-name casing: the same field can
// arrive as "startTime" or "StartTime" depending on which service produced
// the payload. Normalization happens here, once, at receipt; nothing above
// the gateway ever branches on casing.

// looseFields indexes a JSON object's members by lowercased key.
type looseFields map[string]json.RawMessage

func newLooseFields(data []byte) (looseFields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	fields := make(looseFields, len(raw))
	for k, v := range raw {
		fields[strings.ToLower(k)] = v
	}
	return fields, nil
}

func (f looseFields) str(key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (f looseFields) strPtr(key string) *string {
	s := f.str(key)
	if s == "" {
		return nil
	}
	return &s
}

func (f looseFields) boolean(key string) bool {
	raw, ok := f[key]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

func (f looseFields) integer(key string) int {
	raw, ok := f[key]
	if !ok {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	return n
}

// instant parses an RFC 3339 timestamp field. Absent, null, empty and
// zero-valued timestamps all come back as nil; the sort comparators put
// those last.
func (f looseFields) instant(key string) *time.Time {
	s := f.str(key)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil || t.IsZero() {
		return nil
	}
	return &t
}

func (f looseFields) raw(key string) (json.RawMessage, bool) {
	v, ok := f[key]
	return v, ok
}

// EventDTO is the wire shape of an event. It accepts any casing of the
// documented field names and normalizes to models.Event.
type EventDTO struct {
	Event models.Event
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *EventDTO) UnmarshalJSON(data []byte) error {
	fields, err := newLooseFields(data)
	if err != nil {
		return fmt.Errorf("decoding event: %w", err)
	}

	e := models.Event{
		ID:                    fields.str("id"),
		Title:                 fields.str("title"),
		Description:           fields.str("description"),
		StartsAt:              fields.instant("starttime"),
		EndsAt:                fields.instant("endtime"),
		Visibility:            strings.ToLower(fields.str("visibility")),
		AcceptingParticipants: fields.boolean("acceptingparticipants"),
		OrganizerID:           fields.str("organizerid"),
		OrganizerName:         fields.str("organizername"),
		MeetingLink:           fields.strPtr("meetinglink"),
		ImageID:               fields.strPtr("imageid"),
		Active:                fields.boolean("isactive"),
	}

	if raw, ok := fields.raw("participants"); ok {
		var dtos []ParticipantDTO
		if err := json.Unmarshal(raw, &dtos); err != nil {
			return fmt.Errorf("decoding participants: %w", err)
		}
		e.Participants = make([]models.Participant, 0, len(dtos))
		for _, p := range dtos {
			e.Participants = append(e.Participants, p.Participant)
		}
	}

	d.Event = e
	return nil
}

// ParticipantDTO is the wire shape of a participant entry.
type ParticipantDTO struct {
	Participant models.Participant
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *ParticipantDTO) UnmarshalJSON(data []byte) error {
	fields, err := newLooseFields(data)
	if err != nil {
		return fmt.Errorf("decoding participant: %w", err)
	}

	p := models.Participant{
		UserID: fields.str("userid"),
		Name:   fields.str("name"),
		Status: models.ParticipantStatus(fields.integer("status")),
		Colors: models.ColorPair{
			Background: fields.str("backgroundcolor"),
			Foreground: fields.str("foregroundcolor"),
		},
	}
	if t := fields.instant("requestedat"); t != nil {
		p.RequestedAt = *t
	}

	d.Participant = p
	return nil
}

// EventList is the wire shape of an event collection. The backend returns a
// bare object instead of an array when a query matches exactly one event;
// both decode to a slice here.
type EventList struct {
	Events []models.Event
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *EventList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		l.Events = nil
		return nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var single EventDTO
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		l.Events = []models.Event{single.Event}
		return nil
	}

	var dtos []EventDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return err
	}
	l.Events = make([]models.Event, 0, len(dtos))
	for _, d := range dtos {
		l.Events = append(l.Events, d.Event)
	}
	return nil
}

// DeltaDTO is the wire shape of a realtime change notification.
type DeltaDTO struct {
	Delta models.Delta
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DeltaDTO) UnmarshalJSON(data []byte) error {
	fields, err := newLooseFields(data)
	if err != nil {
		return fmt.Errorf("decoding delta: %w", err)
	}

	action := models.DeltaAction(strings.ToLower(fields.str("action")))

	var event EventDTO
	if raw, ok := fields.raw("event"); ok {
		if err := json.Unmarshal(raw, &event); err != nil {
			return fmt.Errorf("decoding delta event: %w", err)
		}
	}

	d.Delta = models.Delta{Action: action, Event: event.Event}
	return nil
}

// UserDTO is the wire shape of the current identity.
type UserDTO struct {
	User models.User
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *UserDTO) UnmarshalJSON(data []byte) error {
	fields, err := newLooseFields(data)
	if err != nil {
		return fmt.Errorf("decoding user: %w", err)
	}

	d.User = models.User{
		ID:         fields.str("id"),
		Name:       fields.str("name"),
		Role:       models.Role(strings.ToLower(fields.str("role"))),
		Contact:    fields.str("contact"),
		Occupation: fields.str("occupation"),
		Address:    fields.str("address"),
	}
	return nil
}
