package realtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gatherly/client/internal/api"
	"github.com/gatherly/client/internal/models"
)

// TopicEventChanged is the one message topic the hub publishes to clients:
// a create/update/delete notification for a single event.
const TopicEventChanged = "event.changed"

// wireMessage is the hub's message envelope.
type wireMessage struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// decodeDelta parses a raw frame into a delta. Frames on other topics
// return ok=false; malformed frames return an error so the caller can log
// and drop them without tearing the connection down.
func decodeDelta(frame []byte) (models.Delta, bool, error) {
	var msg wireMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return models.Delta{}, false, fmt.Errorf("decoding message envelope: %w", err)
	}

	if !strings.EqualFold(msg.Topic, TopicEventChanged) {
		return models.Delta{}, false, nil
	}

	var dto api.DeltaDTO
	if err := json.Unmarshal(msg.Payload, &dto); err != nil {
		return models.Delta{}, false, fmt.Errorf("decoding %s payload: %w", TopicEventChanged, err)
	}

	return dto.Delta, true, nil
}
