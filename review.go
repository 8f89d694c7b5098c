package briefing

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// ReviewRequest describes a checkpoint awaiting a human decision.
type ReviewRequest struct {
	CheckpointType CheckpointType
	Payload        *CheckpointPayload
}

// Reviewer supplies human decisions to review stages. The engine runs one
// executor regardless of how decisions arrive; the reviewer decides whether
// a review stage blocks for input or suspends the session.
type Reviewer interface {

	// Review requests a decision for a parked checkpoint. ok=false means no
	// decision is available now and the session must suspend until feedback
	// is submitted externally.
	Review(ctx context.Context, req ReviewRequest) (decision string, ok bool, err error)
}

// AsyncReviewer never answers inline: review stages suspend and wait for
// SubmitFeedback. This is the strategy used by the server.
type AsyncReviewer struct{}

func NewAsyncReviewer() *AsyncReviewer {
	return &AsyncReviewer{}
}

func (r *AsyncReviewer) Review(ctx context.Context, req ReviewRequest) (string, bool, error) {
	return "", false, nil
}

// ConsoleReviewer prompts for a decision on a terminal, for interactive CLI
// runs. Sessions driven this way never suspend.
type ConsoleReviewer struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewConsoleReviewer(in io.Reader, out io.Writer) *ConsoleReviewer {
	return &ConsoleReviewer{reader: bufio.NewReader(in), out: out}
}

func (r *ConsoleReviewer) Review(ctx context.Context, req ReviewRequest) (string, bool, error) {
	fmt.Fprintf(r.out, "\n--- %s checkpoint ---\n", req.CheckpointType)
	if req.Payload != nil {
		r.printPayload(req.Payload)
		fmt.Fprintln(r.out, "Options:")
		for _, opt := range req.Payload.Options {
			fmt.Fprintf(r.out, "  [%s] %s\n", opt.ID, opt.Label)
		}
	}
	fmt.Fprint(r.out, "> ")
	line, err := r.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", false, fmt.Errorf("failed to read decision: %w", err)
	}
	decision := strings.TrimSpace(line)
	if decision == "" {
		decision = req.Payload.Options[0].ID
	}
	return decision, true, nil
}

func (r *ConsoleReviewer) printPayload(payload *CheckpointPayload) {
	switch payload.Type {
	case CheckpointPlanReview:
		fmt.Fprintln(r.out, payload.PlanSummary)
		for _, q := range payload.SearchQueries {
			fmt.Fprintf(r.out, "  - %s\n", q)
		}
	case CheckpointClaimsReview:
		for _, claim := range payload.Claims {
			fmt.Fprintf(r.out, "  %d. %s\n", claim.ID, claim.Text)
		}
	case CheckpointReview:
		fmt.Fprintln(r.out, payload.Outline)
	case CheckpointToneReview:
		fmt.Fprintln(r.out, payload.OutlinePreview)
	}
}

// ReviewStageOptions configures a two-phase human review stage.
type ReviewStageOptions struct {
	Name           string
	CheckpointType CheckpointType
	Status         Status
	Reviewer       Reviewer

	// Feedback reads the stage's feedback field from the state.
	Feedback func(state *State) string

	// SetFeedback builds the update writing the stage's feedback field.
	SetFeedback func(decision string) Update
}

// NewReviewStage builds a two-phase review stage. While its feedback field
// is empty or the pending sentinel, the stage asks the reviewer for a
// decision; with none available it flags the state for suspension and
// returns without doing any work. Once feedback is present the stage
// completes normally and lets the executor route on it.
func NewReviewStage(opts ReviewStageOptions) Stage {
	reviewer := opts.Reviewer
	if reviewer == nil {
		reviewer = NewAsyncReviewer()
	}
	return NewStageFunction(opts.Name, func(ctx context.Context, state *State) (Update, error) {
		existing := strings.TrimSpace(opts.Feedback(state))
		if FeedbackResolved(existing) {
			update := opts.SetFeedback(existing)
			update.Status = opts.Status
			update.WaitingForHuman = Bool(false)
			update.CheckpointType = CheckpointTypePtr("")
			return update, nil
		}

		parked := state.Clone()
		parked.CheckpointType = opts.CheckpointType
		decision, ok, err := reviewer.Review(ctx, ReviewRequest{
			CheckpointType: opts.CheckpointType,
			Payload:        BuildCheckpointPayload(parked),
		})
		if err != nil {
			return Update{}, err
		}
		if !ok {
			update := opts.SetFeedback(FeedbackPending)
			update.Status = opts.Status
			update.WaitingForHuman = Bool(true)
			update.CheckpointType = CheckpointTypePtr(opts.CheckpointType)
			return update, nil
		}

		update := opts.SetFeedback(decision)
		update.Status = opts.Status
		update.WaitingForHuman = Bool(false)
		update.CheckpointType = CheckpointTypePtr("")
		return update, nil
	})
}
