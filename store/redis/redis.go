// Package redis provides a Redis-backed checkpoint store, for deployments
// where sessions must survive process restarts without a full database.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/deepnoodle-ai/briefing"
)

const keyPrefix = "briefing:checkpoint:"

// Store is a briefing.Checkpointer backed by Redis. Each session's latest
// checkpoint is one JSON value under a per-session key.
type Store struct {
	client *goredis.Client
	ttl    time.Duration
}

// Options configures a Redis checkpoint store.
type Options struct {
	Client *goredis.Client

	// TTL expires idle checkpoints. Zero keeps them until deleted.
	TTL time.Duration
}

// New creates a Redis checkpoint store.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Store{client: opts.Client, ttl: opts.TTL}, nil
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *Store) SaveCheckpoint(ctx context.Context, checkpoint *briefing.Checkpoint) error {
	stored := checkpoint.Copy()
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, key(stored.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store checkpoint: %w", err)
	}
	return nil
}

func (s *Store) LoadCheckpoint(ctx context.Context, sessionID string) (*briefing.Checkpoint, error) {
	data, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	var checkpoint briefing.Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &checkpoint, nil
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
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
