package wsx

import "time"

// Event names pushed to clients over their user room.
const (
	EventCreated    = "rebalance:created"
	EventProcessing = "rebalance:processing"
	EventDone       = "rebalance:done"
	EventError      = "rebalance:error"
)

// Event is the wire envelope written to sockets and persisted for offline
// users. The serialized shape ({event, payload, ts}) is shared with external
// readers of the pending lists and with pre-existing parked data; the keys
// must not change.
type Event struct {
	Name      string         `json:"event"`
	Payload   map[string]any `json:"payload"`
	Timestamp int64          `json:"ts"`
}

// NewEvent stamps an envelope with the current time.
func NewEvent(name string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{Name: name, Payload: payload, Timestamp: time.Now().UnixMilli()}
}
