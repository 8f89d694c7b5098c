package briefing

import "time"

// CheckpointType names a human review checkpoint. The set is fixed; feedback
// submissions naming anything else are rejected without touching state.
type CheckpointType string

const (
	CheckpointPlanReview   CheckpointType = "plan_review"
	CheckpointClaimsReview CheckpointType = "claims_review"
	CheckpointReview       CheckpointType = "review"
	CheckpointToneReview   CheckpointType = "tone_review"
)

// Valid reports whether t is one of the declared checkpoint types.
func (t CheckpointType) Valid() bool {
	switch t {
	case CheckpointPlanReview, CheckpointClaimsReview, CheckpointReview, CheckpointToneReview:
		return true
	}
	return false
}

// Checkpoint is the latest state snapshot for a session. Only the most
// recent snapshot is kept; resuming always reads from here rather than from
// a caller-supplied copy.
type Checkpoint struct {
	SessionID   string    `json:"session_id"`
	CurrentNode string    `json:"current_node"`
	State       State     `json:"state"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// Copy returns a deep copy of the checkpoint.
func (c *Checkpoint) Copy() *Checkpoint {
	clone := *c
	clone.State = *c.State.Clone()
	return &clone
}

// ReviewOption is one response a reviewer can choose at a checkpoint.
type ReviewOption struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	RequiresInput bool   `json:"requires_input,omitempty"`
}

// CheckpointPayload is the checkpoint-type-specific data shown to a human
// reviewer while a session is parked.
type CheckpointPayload struct {
	Type           CheckpointType      `json:"type"`
	PlanSummary    string              `json:"plan_summary,omitempty"`
	SearchQueries  []string            `json:"search_queries,omitempty"`
	Claims         []Claim             `json:"claims,omitempty"`
	CitationMap    map[string]Citation `json:"citation_map,omitempty"`
	Outline        string              `json:"outline,omitempty"`
	OutlinePreview string              `json:"outline_preview,omitempty"`
	Options        []ReviewOption      `json:"options"`
}

const (
	claimsPreviewCount  = 6
	outlinePreviewChars = 500
)

// BuildCheckpointPayload extracts the review payload for the checkpoint the
// state is parked at. Returns nil if the state is not parked.
func BuildCheckpointPayload(state *State) *CheckpointPayload {
	switch state.CheckpointType {
	case CheckpointPlanReview:
		return &CheckpointPayload{
			Type:          CheckpointPlanReview,
			PlanSummary:   state.PlanSummary,
			SearchQueries: append([]string(nil), state.SearchQueries...),
			Options: []ReviewOption{
				{ID: "approve", Label: "Approve and continue"},
				{ID: "revise", Label: "Revise plan", RequiresInput: true},
			},
		}
	case CheckpointClaimsReview:
		claims := state.Claims
		if len(claims) > claimsPreviewCount {
			claims = claims[:claimsPreviewCount]
		}
		return &CheckpointPayload{
			Type:        CheckpointClaimsReview,
			Claims:      append([]Claim(nil), claims...),
			CitationMap: state.CitationMap,
			Options: []ReviewOption{
				{ID: "approve", Label: "Approve claims"},
				{ID: "flag", Label: "Flag claims", RequiresInput: true},
			},
		}
	case CheckpointReview:
		return &CheckpointPayload{
			Type:    CheckpointReview,
			Outline: state.Outline,
			Options: []ReviewOption{
				{ID: "approve", Label: "Approve outline"},
				{ID: "revise", Label: "Revise outline", RequiresInput: true},
			},
		}
	case CheckpointToneReview:
		preview := state.Outline
		if len(preview) > outlinePreviewChars {
			preview = preview[:outlinePreviewChars]
		}
		return &CheckpointPayload{
			Type:           CheckpointToneReview,
			OutlinePreview: preview,
			Options: []ReviewOption{
				{ID: "skip", Label: "Skip tone adjustment"},
				{ID: "adjust", Label: "Adjust tone/focus", RequiresInput: true},
			},
		}
	}
	return nil
}
