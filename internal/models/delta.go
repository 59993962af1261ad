package models

// DeltaAction identifies what a realtime change notification does.
type DeltaAction string

// Delta action constants
const (
	DeltaCreate DeltaAction = "create"
	DeltaUpdate DeltaAction = "update"
	DeltaDelete DeltaAction = "delete"
)

// Delta is a single realtime change notification for one event.
// Delivery is at-least-once and unordered with respect to REST calls, so
// consumers must apply deltas idempotently.
type Delta struct {
	Action DeltaAction `json:"action"`
	Event  Event       `json:"event"`
}
