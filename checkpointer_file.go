package briefing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileCheckpointer persists the latest checkpoint per session as a JSON
// file on disk, so sessions survive a process restart.
type FileCheckpointer struct {
	dataDir string
	mutex   sync.Mutex
}

// NewFileCheckpointer creates a file-based checkpoint store rooted at
// dataDir, defaulting to ~/.briefing/checkpoints.
func NewFileCheckpointer(dataDir string) (*FileCheckpointer, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".briefing", "checkpoints")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &FileCheckpointer{dataDir: dataDir}, nil
}

func (c *FileCheckpointer) checkpointPath(sessionID string) string {
	// Session IDs are typeids, but don't trust them as path components.
	safe := strings.ReplaceAll(sessionID, string(os.PathSeparator), "_")
	return filepath.Join(c.dataDir, safe+".json")
}

func (c *FileCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.write(checkpoint)
}

func (c *FileCheckpointer) write(checkpoint *Checkpoint) error {
	stored := checkpoint.Copy()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	path := c.checkpointPath(stored.SessionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	return nil
}

func (c *FileCheckpointer) LoadCheckpoint(ctx context.Context, sessionID string) (*Checkpoint, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.read(sessionID)
}

func (c *FileCheckpointer) read(sessionID string) (*Checkpoint, error) {
	data, err := os.ReadFile(c.checkpointPath(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

func (c *FileCheckpointer) MergeCheckpoint(ctx context.Context, sessionID string, update Update) (*Checkpoint, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	checkpoint, err := c.read(sessionID)
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, ErrSessionNotFound
	}
	if err := checkpoint.State.Apply(update); err != nil {
		return nil, err
	}
	if err := c.write(checkpoint); err != nil {
		return nil, err
	}
	return checkpoint.Copy(), nil
}

func (c *FileCheckpointer) DeleteCheckpoint(ctx context.Context, sessionID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	err := os.Remove(c.checkpointPath(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}
