package briefing

import (
	"context"
	"sync"
	"time"
)

// MemoryCheckpointer keeps checkpoints in process memory. It is the default
// store for tests and single-process deployments.
type MemoryCheckpointer struct {
	mutex       sync.RWMutex
	checkpoints map[string]*Checkpoint
}

// NewMemoryCheckpointer creates an empty in-memory checkpoint store.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{checkpoints: map[string]*Checkpoint{}}
}

func (c *MemoryCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stored := checkpoint.Copy()
	if existing, ok := c.checkpoints[checkpoint.SessionID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = time.Now()
	c.checkpoints[checkpoint.SessionID] = stored
	return nil
}

func (c *MemoryCheckpointer) LoadCheckpoint(ctx context.Context, sessionID string) (*Checkpoint, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	checkpoint, ok := c.checkpoints[sessionID]
	if !ok {
		return nil, nil
	}
	return checkpoint.Copy(), nil
}

func (c *MemoryCheckpointer) MergeCheckpoint(ctx context.Context, sessionID string, update Update) (*Checkpoint, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	checkpoint, ok := c.checkpoints[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	merged := checkpoint.Copy()
	if err := merged.State.Apply(update); err != nil {
		return nil, err
	}
	merged.UpdatedAt = time.Now()
	c.checkpoints[sessionID] = merged
	return merged.Copy(), nil
}

func (c *MemoryCheckpointer) DeleteCheckpoint(ctx context.Context, sessionID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.checkpoints, sessionID)
	return nil
}
