// Package postgres provides a Postgres-backed checkpoint store using
// database/sql and the pq driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/deepnoodle-ai/briefing"
)

const schema = `
CREATE TABLE IF NOT EXISTS briefing_checkpoints (
	session_id   TEXT PRIMARY KEY,
	current_node TEXT NOT NULL DEFAULT '',
	state        JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
)`

// Store is a briefing.Checkpointer holding the latest checkpoint per
// session in one upserted row.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres with the pq driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// New creates a Postgres checkpoint store over an existing connection.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &Store{db: db}, nil
}

// InitSchema creates the checkpoint table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create checkpoint table: %w", err)
	}
	return nil
}

func (s *Store) SaveCheckpoint(ctx context.Context, checkpoint *briefing.Checkpoint) error {
	stateJSON, err := json.Marshal(checkpoint.State)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	now := time.Now()
	createdAt := checkpoint.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO briefing_checkpoints (session_id, current_node, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE
		SET current_node = EXCLUDED.current_node,
		    state = EXCLUDED.state,
		    updated_at = EXCLUDED.updated_at`,
		checkpoint.SessionID, checkpoint.CurrentNode, stateJSON, createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to store checkpoint: %w", err)
	}
	return nil
}

func (s *Store) LoadCheckpoint(ctx context.Context, sessionID string) (*briefing.Checkpoint, error) {
	checkpoint := &briefing.Checkpoint{SessionID: sessionID}
	var stateJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT current_node, state, created_at, updated_at
		FROM briefing_checkpoints WHERE session_id = $1`, sessionID).
		Scan(&checkpoint.CurrentNode, &stateJSON, &checkpoint.CreatedAt, &checkpoint.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := json.Unmarshal(stateJSON, &checkpoint.State); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return checkpoint, nil
}

func (s *Store) MergeCheckpoint(ctx context.Context, sessionID string, update briefing.Update) (*briefing.Checkpoint, error) {
	checkpoint, err := s.LoadCheckpoint(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, briefing.ErrSessionNotFound
	}
	if err := checkpoint.State.Apply(update); err != nil {
		return nil, err
	}
	if err := s.SaveCheckpoint(ctx, checkpoint); err != nil {
		return nil, err
	}
	return checkpoint, nil
}

func (s *Store) DeleteCheckpoint(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM briefing_checkpoints WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
