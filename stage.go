package briefing

import "context"

// Stage is an action executed by one graph node: state in, partial update
// out. The engine does not interpret what a stage does, only whether it
// returned or failed. A failed stage never has its update applied.
type Stage interface {

	// Name returns the name of the stage.
	Name() string

	// Execute runs the stage against a read-only view of the state.
	Execute(ctx context.Context, state *State) (Update, error)
}

// StageFunction is a function that can be used as a stage.
type StageFunction struct {
	name string
	fn   func(ctx context.Context, state *State) (Update, error)
}

// NewStageFunction creates a new StageFunction.
func NewStageFunction(name string, fn func(ctx context.Context, state *State) (Update, error)) *StageFunction {
	return &StageFunction{name: name, fn: fn}
}

func (s *StageFunction) Name() string {
	return s.name
}

func (s *StageFunction) Execute(ctx context.Context, state *State) (Update, error) {
	return s.fn(ctx, state)
}
