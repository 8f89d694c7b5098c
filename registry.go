package briefing

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.jetify.com/typeid"
)

// NewSessionID returns a new typeid for session identification.
func NewSessionID() string {
	id, err := typeid.WithPrefix("session")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// SessionStatus is the lifecycle status of a session record, independent of
// the pipeline status inside the workflow state.
type SessionStatus string

const (
	SessionStatusInitializing SessionStatus = "initializing"
	SessionStatusRunning      SessionStatus = "running"
	SessionStatusCompleted    SessionStatus = "completed"
	SessionStatusFailed       SessionStatus = "failed"
)

// SessionConfig is the caller-supplied configuration for a new session.
type SessionConfig struct {
	Topic       string  `json:"topic"`
	Model       string  `json:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	Seed        int64   `json:"seed,omitempty"`
}

// Session is the control record for one pipeline run. It is owned by the
// registry and holds no workflow field data.
type Session struct {
	ID              string         `json:"id"`
	Topic           string         `json:"topic"`
	Model           string         `json:"model,omitempty"`
	Temperature     float32        `json:"temperature,omitempty"`
	Seed            int64          `json:"seed"`
	Status          SessionStatus  `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	CompletedAt     time.Time      `json:"completed_at,omitzero"`
	LastError       string         `json:"last_error,omitempty"`
	WaitingForHuman bool           `json:"waiting_for_human"`
	CheckpointType  CheckpointType `json:"checkpoint_type,omitempty"`
}

// SessionView is a point-in-time status snapshot combining the session
// record with its checkpointed workflow state.
type SessionView struct {
	Session
	CurrentNode    string             `json:"current_node,omitempty"`
	PipelineStatus Status             `json:"pipeline_status,omitempty"`
	CheckpointData *CheckpointPayload `json:"checkpoint_data,omitempty"`
}

type sessionHandle struct {
	mutex   sync.Mutex
	record  Session
	cancel  context.CancelFunc
	running bool

	// resumePending records a feedback submission that arrived while a run
	// was still in flight; the run schedules the resume itself when it
	// parks instead of re-marking the session as waiting.
	resumePending bool
}

// RegistryOptions configures a session registry.
type RegistryOptions struct {
	Executor     *Executor
	Checkpointer Checkpointer
	Broadcaster  *Broadcaster
	Logger       *slog.Logger
}

// Registry tracks session lifecycle records and schedules executor runs.
// Each session runs in its own goroutine; suspension is indefinite and
// passive, with SubmitFeedback the only resume trigger.
type Registry struct {
	mutex        sync.RWMutex
	sessions     map[string]*sessionHandle
	executor     *Executor
	checkpointer Checkpointer
	broadcaster  *Broadcaster
	logger       *slog.Logger
}

// NewRegistry creates a session registry. The checkpointer and broadcaster
// must be the same instances the executor uses.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Executor == nil {
		return nil, NewValidationError("executor is required")
	}
	if opts.Checkpointer == nil {
		return nil, NewValidationError("checkpointer is required")
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = NewBroadcaster()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		sessions:     map[string]*sessionHandle{},
		executor:     opts.Executor,
		checkpointer: opts.Checkpointer,
		broadcaster:  opts.Broadcaster,
		logger:       opts.Logger,
	}, nil
}

// Create registers a new session, seeds its checkpoint, and starts its
// executor run in the background.
func (r *Registry) Create(ctx context.Context, config SessionConfig) (*Session, error) {
	topic := strings.TrimSpace(config.Topic)
	if topic == "" {
		return nil, NewValidationError("topic is required")
	}
	seed := config.Seed
	if seed == 0 {
		seed = 42
	}

	handle := &sessionHandle{
		record: Session{
			ID:          NewSessionID(),
			Topic:       topic,
			Model:       config.Model,
			Temperature: config.Temperature,
			Seed:        seed,
			Status:      SessionStatusInitializing,
			CreatedAt:   time.Now(),
		},
	}
	err := r.checkpointer.SaveCheckpoint(ctx, &Checkpoint{
		SessionID: handle.record.ID,
		State:     State{Topic: topic, Seed: seed},
	})
	if err != nil {
		return nil, err
	}

	r.mutex.Lock()
	r.sessions[handle.record.ID] = handle
	r.mutex.Unlock()

	r.start(handle)
	record := handle.snapshot()
	return &record, nil
}

// Get returns a copy of the session record.
func (r *Registry) Get(id string) (*Session, error) {
	handle, err := r.handle(id)
	if err != nil {
		return nil, err
	}
	record := handle.snapshot()
	return &record, nil
}

// List returns all session records, newest first.
func (r *Registry) List() []*Session {
	r.mutex.RLock()
	handles := make([]*sessionHandle, 0, len(r.sessions))
	for _, handle := range r.sessions {
		handles = append(handles, handle)
	}
	r.mutex.RUnlock()

	sessions := make([]*Session, 0, len(handles))
	for _, handle := range handles {
		record := handle.snapshot()
		sessions = append(sessions, &record)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions
}

// Delete removes a session, its checkpoint, and its subscribers, stopping
// any in-flight executor run best-effort.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mutex.Lock()
	handle, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mutex.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	handle.mutex.Lock()
	if handle.cancel != nil {
		handle.cancel()
	}
	handle.mutex.Unlock()

	r.broadcaster.CloseSession(id)
	return r.checkpointer.DeleteCheckpoint(ctx, id)
}

// SubmitFeedback validates and injects a human decision for a parked
// checkpoint, then schedules an asynchronous resume. The checkpoint type
// must be one of the fixed review checkpoints; anything else is rejected
// without touching state.
func (r *Registry) SubmitFeedback(ctx context.Context, id string, checkpointType CheckpointType, decision string) error {
	if !checkpointType.Valid() {
		return NewValidationError("unknown checkpoint type %q", checkpointType)
	}
	decision = strings.TrimSpace(decision)
	if decision == "" {
		return NewValidationError("decision is required")
	}
	handle, err := r.handle(id)
	if err != nil {
		return err
	}

	update, err := FeedbackUpdate(checkpointType, decision)
	if err != nil {
		return err
	}

	handle.mutex.Lock()
	defer handle.mutex.Unlock()

	if _, err := r.checkpointer.MergeCheckpoint(ctx, id, update); err != nil {
		return err
	}
	handle.record.WaitingForHuman = false
	handle.record.CheckpointType = ""
	r.logger.Info("feedback submitted",
		"session_id", id, "checkpoint_type", checkpointType)

	if handle.running {
		// The run may already be past the review stage's read and about
		// to park; let it pick the merged decision up when it does.
		handle.resumePending = true
	} else {
		r.startLocked(handle)
	}
	return nil
}

// Status returns a point-in-time view of the session and its checkpointed
// state, including the review payload when parked.
func (r *Registry) Status(ctx context.Context, id string) (*SessionView, error) {
	handle, err := r.handle(id)
	if err != nil {
		return nil, err
	}
	view := &SessionView{Session: handle.snapshot()}

	checkpoint, err := r.checkpointer.LoadCheckpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	if checkpoint != nil {
		view.CurrentNode = checkpoint.CurrentNode
		view.PipelineStatus = checkpoint.State.Status
		view.WaitingForHuman = checkpoint.State.WaitingForHuman
		view.CheckpointType = checkpoint.State.CheckpointType
		view.CheckpointData = BuildCheckpointPayload(&checkpoint.State)
	}
	return view, nil
}

// CheckpointState returns a copy of the session's checkpointed workflow
// state, for result reads.
func (r *Registry) CheckpointState(ctx context.Context, id string) (*State, error) {
	if _, err := r.handle(id); err != nil {
		return nil, err
	}
	checkpoint, err := r.checkpointer.LoadCheckpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, ErrSessionNotFound
	}
	return checkpoint.State.Clone(), nil
}

// Subscribe attaches a live event stream to a session, seeded with a
// connected snapshot of the current status.
func (r *Registry) Subscribe(ctx context.Context, id string) (*Subscription, error) {
	view, err := r.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.broadcaster.Subscribe(id, Event{
		Node:            view.CurrentNode,
		Status:          view.PipelineStatus,
		WaitingForHuman: view.WaitingForHuman,
		CheckpointType:  view.CheckpointType,
	}), nil
}

// Unsubscribe detaches a live event stream.
func (r *Registry) Unsubscribe(id string, sub *Subscription) {
	r.broadcaster.Unsubscribe(id, sub)
}

func (r *Registry) handle(id string) (*sessionHandle, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	handle, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return handle, nil
}

func (r *Registry) start(handle *sessionHandle) {
	handle.mutex.Lock()
	defer handle.mutex.Unlock()
	r.startLocked(handle)
}

// startLocked must be called with the handle mutex held. It guarantees at
// most one executor run per session at a time.
func (r *Registry) startLocked(handle *sessionHandle) {
	if handle.running {
		return
	}
	handle.running = true
	handle.record.Status = SessionStatusRunning
	runCtx, cancel := context.WithCancel(context.Background())
	handle.cancel = cancel

	go r.runSession(runCtx, handle)
}

func (r *Registry) runSession(ctx context.Context, handle *sessionHandle) {
	id := handle.record.ID
	result, err := r.executor.Run(ctx, id)

	// Read before releasing the run context below; afterwards ctx.Err is
	// always non-nil.
	cancelled := ctx.Err() != nil

	handle.mutex.Lock()
	defer handle.mutex.Unlock()

	handle.running = false
	if handle.cancel != nil {
		handle.cancel()
		handle.cancel = nil
	}

	switch {
	case cancelled:
		// Session was deleted or shut down mid-run; nothing to record.
		// If the session is gone, a checkpoint save that raced the delete
		// must not survive it.
		handle.resumePending = false
		if _, err := r.handle(id); err != nil {
			if err := r.checkpointer.DeleteCheckpoint(context.Background(), id); err != nil {
				r.logger.Warn("failed to clear checkpoint after delete",
					"session_id", id, "error", err)
			}
		}
	case err != nil:
		handle.resumePending = false
		handle.record.Status = SessionStatusFailed
		handle.record.LastError = err.Error()
		handle.record.CompletedAt = time.Now()
		r.logger.Error("session failed", "session_id", id, "error", err)
	case result.Suspended:
		if handle.resumePending {
			// Feedback landed while this run was parking; resume with
			// the merged decision instead of waiting.
			handle.resumePending = false
			r.startLocked(handle)
			return
		}
		handle.record.WaitingForHuman = true
		handle.record.CheckpointType = result.CheckpointType
	default:
		handle.resumePending = false
		handle.record.Status = SessionStatusCompleted
		handle.record.CompletedAt = time.Now()
	}
}

func (h *sessionHandle) snapshot() Session {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.record
}
