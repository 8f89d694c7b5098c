package briefing

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/deepnoodle-ai/briefing/eventlog"
)

// DefaultLoopAllowance is the number of full extra passes through the graph
// a run may take before it is declared non-convergent. The step limit is
// derived from the node count rather than being a flat constant.
const DefaultLoopAllowance = 2

// ExecutorOptions configures an executor.
type ExecutorOptions struct {
	Graph         *Graph
	Checkpointer  Checkpointer
	Broadcaster   *Broadcaster
	StageLogger   eventlog.Logger
	Logger        *slog.Logger
	LoopAllowance int
}

// RunResult summarizes how an executor run ended.
type RunResult struct {
	Suspended      bool
	CheckpointType CheckpointType
	Status         Status
	Steps          int
}

// Executor drives sessions from their current node to a terminal node or a
// suspension point. One executor serves any number of sessions; each call
// to Run handles exactly one session and is strictly sequential within it.
type Executor struct {
	graph        *Graph
	checkpointer Checkpointer
	broadcaster  *Broadcaster
	stageLogger  eventlog.Logger
	logger       *slog.Logger
	maxSteps     int
}

// NewExecutor creates an executor for the given graph.
func NewExecutor(opts ExecutorOptions) (*Executor, error) {
	if opts.Graph == nil {
		return nil, NewValidationError("graph is required")
	}
	if opts.Checkpointer == nil {
		opts.Checkpointer = NewMemoryCheckpointer()
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = NewBroadcaster()
	}
	if opts.StageLogger == nil {
		opts.StageLogger = eventlog.NewNullLogger()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	allowance := opts.LoopAllowance
	if allowance <= 0 {
		allowance = DefaultLoopAllowance
	}
	return &Executor{
		graph:        opts.Graph,
		checkpointer: opts.Checkpointer,
		broadcaster:  opts.Broadcaster,
		stageLogger:  opts.StageLogger,
		logger:       opts.Logger,
		maxSteps:     opts.Graph.Len() * (1 + allowance),
	}, nil
}

// MaxSteps returns the derived step limit per run.
func (e *Executor) MaxSteps() int {
	return e.maxSteps
}

// Run advances one session until it completes, suspends at a review
// checkpoint, or fails. The session's checkpoint must already exist; resume
// state is always read from the checkpoint store, never from the caller.
func (e *Executor) Run(ctx context.Context, sessionID string) (*RunResult, error) {
	checkpoint, err := e.checkpointer.LoadCheckpoint(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, NewValidationError("no checkpoint for session %q", sessionID)
	}

	state := checkpoint.State
	nodeName := checkpoint.CurrentNode
	if nodeName == "" {
		nodeName = e.graph.Entry()
	}
	logger := e.logger.With("session_id", sessionID)

	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		steps++
		if steps > e.maxSteps {
			err := NewNonConvergenceError(e.maxSteps)
			e.publishError(sessionID, err)
			return nil, err
		}

		node, ok := e.graph.Node(nodeName)
		if !ok {
			err := NewValidationError("node %q not found in graph", nodeName)
			e.publishError(sessionID, err)
			return nil, err
		}

		e.broadcaster.Publish(sessionID, Event{
			Type:   EventNodeStarted,
			Node:   nodeName,
			Status: state.Status,
		})

		startTime := time.Now()
		update, stageErr := node.Stage.Execute(ctx, state.Clone())
		if stageErr == nil {
			stageErr = state.Apply(update)
		}
		e.logStage(ctx, sessionID, nodeName, &state, stageErr, startTime)
		if stageErr != nil {
			failure := NewStageFailure(nodeName, stageErr)
			logger.Error("stage failed", "node", nodeName, "error", stageErr)
			e.publishError(sessionID, failure)
			return nil, failure
		}
		logger.Debug("node complete", "node", nodeName, "status", state.Status,
			"waiting", state.WaitingForHuman)

		if state.WaitingForHuman {
			// The checkpoint must be durable before the executor halts.
			if err := e.save(ctx, sessionID, nodeName, &state, checkpoint.CreatedAt); err != nil {
				e.publishError(sessionID, err)
				return nil, err
			}
			e.broadcaster.Publish(sessionID, Event{
				Type:            EventNodeComplete,
				Node:            nodeName,
				Status:          state.Status,
				WaitingForHuman: true,
				CheckpointType:  state.CheckpointType,
				CheckpointData:  BuildCheckpointPayload(&state),
			})
			logger.Info("session parked", "checkpoint_type", state.CheckpointType)
			return &RunResult{
				Suspended:      true,
				CheckpointType: state.CheckpointType,
				Status:         state.Status,
				Steps:          steps,
			}, nil
		}

		e.broadcaster.Publish(sessionID, Event{
			Type:   EventNodeComplete,
			Node:   nodeName,
			Status: state.Status,
		})

		next, hasNext, routeErr := e.graph.nextNode(node, &state)
		if routeErr != nil {
			failure := NewStageFailure(nodeName, routeErr)
			e.publishError(sessionID, failure)
			return nil, failure
		}
		if !hasNext {
			if err := e.save(ctx, sessionID, nodeName, &state, checkpoint.CreatedAt); err != nil {
				e.publishError(sessionID, err)
				return nil, err
			}
			e.broadcaster.Publish(sessionID, Event{
				Type:   EventSessionComplete,
				Status: state.Status,
			})
			logger.Info("session complete", "steps", steps)
			return &RunResult{Status: state.Status, Steps: steps}, nil
		}

		if err := e.save(ctx, sessionID, next, &state, checkpoint.CreatedAt); err != nil {
			e.publishError(sessionID, err)
			return nil, err
		}
		nodeName = next
	}
}

func (e *Executor) save(ctx context.Context, sessionID, currentNode string, state *State, createdAt time.Time) error {
	return e.checkpointer.SaveCheckpoint(ctx, &Checkpoint{
		SessionID:   sessionID,
		CurrentNode: currentNode,
		State:       *state.Clone(),
		CreatedAt:   createdAt,
	})
}

func (e *Executor) publishError(sessionID string, err error) {
	e.broadcaster.Publish(sessionID, Event{
		Type:    EventError,
		Message: err.Error(),
	})
}

func (e *Executor) logStage(ctx context.Context, sessionID, node string, state *State, stageErr error, startTime time.Time) {
	entry := &eventlog.Entry{
		SessionID: sessionID,
		Node:      node,
		Status:    string(state.Status),
		Waiting:   state.WaitingForHuman,
		StartTime: startTime,
		Duration:  time.Since(startTime).Seconds(),
	}
	if stageErr != nil {
		entry.Error = stageErr.Error()
	}
	if err := e.stageLogger.LogStage(ctx, entry); err != nil {
		e.logger.Error("failed to log stage", "node", node, "error", err)
	}
}
