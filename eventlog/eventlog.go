// Package eventlog records completed stage executions per session as an
// append-only history, separate from the transient live event channel.
package eventlog

import (
	"context"
	"time"
)

// Entry is a single completed stage execution.
type Entry struct {
	SessionID string    `json:"session_id"`
	Node      string    `json:"node"`
	Status    string    `json:"status"`
	Waiting   bool      `json:"waiting,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartTime time.Time `json:"start_time"`
	Duration  float64   `json:"duration"`
}

// Logger defines the stage logging interface.
type Logger interface {

	// LogStage records a completed stage execution.
	LogStage(ctx context.Context, entry *Entry) error

	// StageHistory retrieves the stage log for a session, oldest first.
	StageHistory(ctx context.Context, sessionID string) ([]*Entry, error)

	// DeleteHistory drops the stored stage log for a session. Deleting an
	// unknown session is not an error.
	DeleteHistory(ctx context.Context, sessionID string) error
}
