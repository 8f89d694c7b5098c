package briefing

import (
	"context"
)

// Checkpointer stores the latest checkpoint per session. Implementations
// must be safe for concurrent use: the executor writes checkpoints while
// the API layer merges feedback and reads status.
type Checkpointer interface {

	// SaveCheckpoint overwrites the stored checkpoint for a session.
	SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error

	// LoadCheckpoint returns the stored checkpoint, or nil if none exists.
	LoadCheckpoint(ctx context.Context, sessionID string) (*Checkpoint, error)

	// MergeCheckpoint applies a partial update to the stored state without
	// discarding unrelated fields, and returns the merged checkpoint. Used
	// to inject a human decision before resuming.
	MergeCheckpoint(ctx context.Context, sessionID string, update Update) (*Checkpoint, error)

	// DeleteCheckpoint removes checkpoint data for a session.
	DeleteCheckpoint(ctx context.Context, sessionID string) error
}
