package briefing

import "strings"

// Decision is a routing label returned by a conditional edge's routing
// function. The set of decisions is closed so that the engine and the API
// boundary share one vocabulary instead of comparing ad hoc strings.
type Decision string

const (
	DecisionReplan        Decision = "replan"
	DecisionContinue      Decision = "continue"
	DecisionRefine        Decision = "refine"
	DecisionGenerateBrief Decision = "generate_brief"
	DecisionApply         Decision = "apply"
	DecisionSkip          Decision = "skip"
)

// Feedback sentinels recognized by the review gates. Any other non-empty
// feedback value is treated as revision text.
const (
	FeedbackApprove = "approve"
	FeedbackPending = "pending"
	FeedbackSkip    = "skip"
)

func normalizeFeedback(feedback string) string {
	return strings.ToLower(strings.TrimSpace(feedback))
}

// FeedbackResolved reports whether a feedback field holds an actual human
// decision. Empty and the "pending" sentinel both mean the review is still
// waiting.
func FeedbackResolved(feedback string) bool {
	fb := normalizeFeedback(feedback)
	return fb != "" && fb != FeedbackPending
}

// ReplanGate routes after the plan review node: any feedback other than
// approve/pending requests a new search plan.
func ReplanGate(state *State) Decision {
	fb := normalizeFeedback(state.PlanFeedback)
	if fb != "" && fb != FeedbackApprove && fb != FeedbackPending {
		return DecisionReplan
	}
	return DecisionContinue
}

// RevisionGate routes after the outline review node: any feedback other
// than approve/pending requests an outline refinement pass.
func RevisionGate(state *State) Decision {
	fb := normalizeFeedback(state.HumanFeedback)
	if fb != "" && fb != FeedbackApprove && fb != FeedbackPending {
		return DecisionRefine
	}
	return DecisionGenerateBrief
}

// ToneGate routes after the tone review node: preference text other than
// skip/pending applies a tone adjustment, anything else skips it.
func ToneGate(state *State) Decision {
	prefs := normalizeFeedback(state.TonePrefs)
	if prefs != "" && prefs != FeedbackSkip && prefs != FeedbackPending {
		return DecisionApply
	}
	return DecisionSkip
}
