package briefing

import "time"

// EventType identifies a session lifecycle event.
type EventType string

const (
	EventConnected       EventType = "connected"
	EventNodeStarted     EventType = "node_started"
	EventNodeComplete    EventType = "node_complete"
	EventSessionComplete EventType = "session_complete"
	EventError           EventType = "error"
)

// Event is a transient lifecycle notification. Events are never persisted
// by the engine; they exist only on the live channel to subscribers.
type Event struct {
	Type            EventType          `json:"type"`
	SessionID       string             `json:"session_id"`
	Node            string             `json:"node,omitempty"`
	Status          Status             `json:"status,omitempty"`
	WaitingForHuman bool               `json:"waiting_for_human"`
	CheckpointType  CheckpointType     `json:"checkpoint_type,omitempty"`
	CheckpointData  *CheckpointPayload `json:"checkpoint_data,omitempty"`
	Message         string             `json:"message,omitempty"`
	Timestamp       time.Time          `json:"timestamp,omitzero"`
}
