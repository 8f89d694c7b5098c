package briefing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// reviewTestGraph is a minimal pipeline with one review checkpoint: draft
// writes a plan, approval parks for plan feedback, and the gate either
// loops back to draft or finishes. draftRuns counts draft executions.
func reviewTestGraph(t *testing.T, draftRuns *atomic.Int64) *Graph {
	t.Helper()
	draft := NewStageFunction("draft", func(ctx context.Context, state *State) (Update, error) {
		runs := draftRuns.Add(1)
		update := Update{
			PlanSummary: String(fmt.Sprintf("plan v%d", runs)),
			Status:      StatusPlanDrafting,
		}
		if FeedbackResolved(state.PlanFeedback) && state.PlanFeedback != FeedbackApprove {
			update.PlanFeedback = String(FeedbackApprove)
		}
		return update, nil
	})
	approval := NewReviewStage(ReviewStageOptions{
		Name:           "approval",
		CheckpointType: CheckpointPlanReview,
		Status:         StatusPlanReview,
		Feedback:       func(state *State) string { return state.PlanFeedback },
		SetFeedback: func(decision string) Update {
			return Update{PlanFeedback: String(decision)}
		},
	})
	finish := NewStageFunction("finish", func(ctx context.Context, state *State) (Update, error) {
		return Update{Status: StatusCompleted}, nil
	})

	graph, err := NewGraph("draft", []*Node{
		{Name: "draft", Stage: draft, Next: "approval"},
		{Name: "approval", Stage: approval, Branch: &ConditionalEdge{
			Route: ReplanGate,
			Targets: map[Decision]string{
				DecisionReplan:   "draft",
				DecisionContinue: "finish",
			},
		}},
		{Name: "finish", Stage: finish},
	})
	require.NoError(t, err)
	return graph
}

func seedSession(t *testing.T, store Checkpointer, sessionID, topic string) {
	t.Helper()
	err := store.SaveCheckpoint(context.Background(), &Checkpoint{
		SessionID: sessionID,
		State:     State{Topic: topic, Seed: 42},
	})
	require.NoError(t, err)
}

func TestExecutorLinearRun(t *testing.T) {
	first := NewStageFunction("first", func(ctx context.Context, state *State) (Update, error) {
		return Update{Status: StatusInput}, nil
	})
	second := NewStageFunction("second", func(ctx context.Context, state *State) (Update, error) {
		require.Equal(t, StatusInput, state.Status)
		return Update{Status: StatusCompleted, FormattedBrief: String("done")}, nil
	})
	graph, err := NewGraph("first", []*Node{
		{Name: "first", Stage: first, Next: "second"},
		{Name: "second", Stage: second},
	})
	require.NoError(t, err)

	store := NewMemoryCheckpointer()
	broadcaster := NewBroadcaster()
	executor, err := NewExecutor(ExecutorOptions{
		Graph:        graph,
		Checkpointer: store,
		Broadcaster:  broadcaster,
	})
	require.NoError(t, err)

	seedSession(t, store, "s1", "topic")
	sub := broadcaster.Subscribe("s1", Event{})
	recvEvent(t, sub)

	result, err := executor.Run(context.Background(), "s1")
	require.NoError(t, err)
	require.False(t, result.Suspended)
	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, 2, result.Steps)

	checkpoint, err := store.LoadCheckpoint(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "done", checkpoint.State.FormattedBrief)
	require.Equal(t, StatusCompleted, checkpoint.State.Status)

	var types []EventType
	for i := 0; i < 5; i++ {
		types = append(types, recvEvent(t, sub).Type)
	}
	require.Equal(t, []EventType{
		EventNodeStarted, EventNodeComplete,
		EventNodeStarted, EventNodeComplete,
		EventSessionComplete,
	}, types)
}

func TestExecutorMissingCheckpoint(t *testing.T) {
	var draftRuns atomic.Int64
	executor, err := NewExecutor(ExecutorOptions{Graph: reviewTestGraph(t, &draftRuns)})
	require.NoError(t, err)

	_, err = executor.Run(context.Background(), "unknown")
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestExecutorSuspendAndResume(t *testing.T) {
	var draftRuns atomic.Int64
	store := NewMemoryCheckpointer()
	broadcaster := NewBroadcaster()
	executor, err := NewExecutor(ExecutorOptions{
		Graph:        reviewTestGraph(t, &draftRuns),
		Checkpointer: store,
		Broadcaster:  broadcaster,
	})
	require.NoError(t, err)
	seedSession(t, store, "s1", "topic")

	result, err := executor.Run(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, result.Suspended)
	require.Equal(t, CheckpointPlanReview, result.CheckpointType)
	require.Equal(t, int64(1), draftRuns.Load())

	// Suspension implies the checkpoint was already durably written.
	checkpoint, err := store.LoadCheckpoint(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "approval", checkpoint.CurrentNode)
	require.True(t, checkpoint.State.WaitingForHuman)
	require.Equal(t, CheckpointPlanReview, checkpoint.State.CheckpointType)
	require.Equal(t, FeedbackPending, checkpoint.State.PlanFeedback)
	require.Equal(t, "plan v1", checkpoint.State.PlanSummary)

	t.Run("revision feedback replans once then continues", func(t *testing.T) {
		update, err := FeedbackUpdate(CheckpointPlanReview, "focus on recent work")
		require.NoError(t, err)
		_, err = store.MergeCheckpoint(context.Background(), "s1", update)
		require.NoError(t, err)

		result, err := executor.Run(context.Background(), "s1")
		require.NoError(t, err)
		require.False(t, result.Suspended)
		require.Equal(t, StatusCompleted, result.Status)
		require.Equal(t, int64(2), draftRuns.Load())

		checkpoint, err := store.LoadCheckpoint(context.Background(), "s1")
		require.NoError(t, err)
		require.Equal(t, "plan v2", checkpoint.State.PlanSummary)
		require.Equal(t, FeedbackApprove, checkpoint.State.PlanFeedback)
		require.False(t, checkpoint.State.WaitingForHuman)
	})
}

func TestExecutorApproveResumesWithoutReplan(t *testing.T) {
	var draftRuns atomic.Int64
	store := NewMemoryCheckpointer()
	executor, err := NewExecutor(ExecutorOptions{
		Graph:        reviewTestGraph(t, &draftRuns),
		Checkpointer: store,
	})
	require.NoError(t, err)
	seedSession(t, store, "s1", "topic")

	result, err := executor.Run(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, result.Suspended)

	update, err := FeedbackUpdate(CheckpointPlanReview, FeedbackApprove)
	require.NoError(t, err)
	_, err = store.MergeCheckpoint(context.Background(), "s1", update)
	require.NoError(t, err)

	result, err = executor.Run(context.Background(), "s1")
	require.NoError(t, err)
	require.False(t, result.Suspended)
	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, int64(1), draftRuns.Load())
}

func TestExecutorDerivedStepLimit(t *testing.T) {
	var draftRuns atomic.Int64
	graph := reviewTestGraph(t, &draftRuns)

	executor, err := NewExecutor(ExecutorOptions{Graph: graph})
	require.NoError(t, err)
	require.Equal(t, graph.Len()*(1+DefaultLoopAllowance), executor.MaxSteps())

	executor, err = NewExecutor(ExecutorOptions{Graph: graph, LoopAllowance: 5})
	require.NoError(t, err)
	require.Equal(t, graph.Len()*6, executor.MaxSteps())
}

func TestExecutorNonConvergence(t *testing.T) {
	executions := 0
	spin := NewStageFunction("spin", func(ctx context.Context, state *State) (Update, error) {
		executions++
		return Update{Status: StatusSearching}, nil
	})
	graph, err := NewGraph("spin", []*Node{
		{Name: "spin", Stage: spin, Branch: &ConditionalEdge{
			Route:   func(*State) Decision { return DecisionReplan },
			Targets: map[Decision]string{DecisionReplan: "spin"},
		}},
	})
	require.NoError(t, err)

	store := NewMemoryCheckpointer()
	executor, err := NewExecutor(ExecutorOptions{Graph: graph, Checkpointer: store})
	require.NoError(t, err)
	seedSession(t, store, "s1", "topic")

	_, err = executor.Run(context.Background(), "s1")
	require.Error(t, err)
	require.True(t, IsNonConvergence(err))
	require.Equal(t, executor.MaxSteps(), executions)
}

func TestExecutorStageFailure(t *testing.T) {
	boom := errors.New("boom")
	failing := NewStageFunction("failing", func(ctx context.Context, state *State) (Update, error) {
		return Update{}, boom
	})
	graph, err := NewGraph("failing", []*Node{{Name: "failing", Stage: failing}})
	require.NoError(t, err)

	store := NewMemoryCheckpointer()
	executor, err := NewExecutor(ExecutorOptions{Graph: graph, Checkpointer: store})
	require.NoError(t, err)
	seedSession(t, store, "s1", "topic")

	_, err = executor.Run(context.Background(), "s1")
	require.Error(t, err)
	require.ErrorIs(t, err, boom)

	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	require.Equal(t, ErrorTypeStageFailure, engineErr.Type)

	// A failed stage never has its update applied or persisted.
	checkpoint, err := store.LoadCheckpoint(context.Background(), "s1")
	require.NoError(t, err)
	require.Empty(t, checkpoint.CurrentNode)
	require.Empty(t, checkpoint.State.Status)
}

func TestExecutorUnmappedDecisionFailsSession(t *testing.T) {
	stage := NewStageFunction("gate", func(ctx context.Context, state *State) (Update, error) {
		return Update{Status: StatusReview}, nil
	})
	graph, err := NewGraph("gate", []*Node{
		{Name: "gate", Stage: stage, Branch: &ConditionalEdge{
			Route:   func(*State) Decision { return DecisionApply },
			Targets: map[Decision]string{DecisionSkip: "gate"},
		}},
	})
	require.NoError(t, err)

	store := NewMemoryCheckpointer()
	executor, err := NewExecutor(ExecutorOptions{Graph: graph, Checkpointer: store})
	require.NoError(t, err)
	seedSession(t, store, "s1", "topic")

	_, err = executor.Run(context.Background(), "s1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmapped decision")
}

func TestExecutorContextCancellation(t *testing.T) {
	var draftRuns atomic.Int64
	store := NewMemoryCheckpointer()
	executor, err := NewExecutor(ExecutorOptions{
		Graph:        reviewTestGraph(t, &draftRuns),
		Checkpointer: store,
	})
	require.NoError(t, err)
	seedSession(t, store, "s1", "topic")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = executor.Run(ctx, "s1")
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, draftRuns.Load())
}
