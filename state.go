package briefing

import "fmt"

// Status names the pipeline stage that most recently completed. It is a
// closed enum validated at every merge boundary.
type Status string

const (
	StatusInput          Status = "input"
	StatusSearchPlanning Status = "search_planning"
	StatusPlanDrafting   Status = "plan_drafting"
	StatusPlanReview     Status = "plan_review"
	StatusSearching      Status = "searching"
	StatusExtracting     Status = "extracting"
	StatusPrioritizing   Status = "prioritizing"
	StatusClaimsExtract  Status = "claims_extracting"
	StatusClaimsReview   Status = "claims_review"
	StatusSynthesizing   Status = "synthesizing"
	StatusReview         Status = "review"
	StatusRefining       Status = "refining"
	StatusToneReview     Status = "tone_review"
	StatusToneApplying   Status = "tone_applying"
	StatusFinal          Status = "final"
	StatusFormatting     Status = "formatting"
	StatusCompleted      Status = "completed"
)

var validStatuses = map[Status]struct{}{
	StatusInput:          {},
	StatusSearchPlanning: {},
	StatusPlanDrafting:   {},
	StatusPlanReview:     {},
	StatusSearching:      {},
	StatusExtracting:     {},
	StatusPrioritizing:   {},
	StatusClaimsExtract:  {},
	StatusClaimsReview:   {},
	StatusSynthesizing:   {},
	StatusReview:         {},
	StatusRefining:       {},
	StatusToneReview:     {},
	StatusToneApplying:   {},
	StatusFinal:          {},
	StatusFormatting:     {},
	StatusCompleted:      {},
}

// Valid reports whether s is a declared pipeline status.
func (s Status) Valid() bool {
	_, ok := validStatuses[s]
	return ok
}

// Source is one retrieved document: a search hit, optionally enriched with
// fetched page content and an authority score.
type Source struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Query   string  `json:"query,omitempty"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// Claim is one extracted factual claim with its citation keys.
type Claim struct {
	ID        int      `json:"id"`
	Text      string   `json:"text"`
	Citations []string `json:"citations"`
}

// Citation describes the source behind a citation key.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// State is the workflow record threaded through every node of a session.
// Fields are filled in monotonically as the pipeline advances.
type State struct {
	Topic string `json:"topic"`
	Seed  int64  `json:"seed"`

	SearchQueries []string `json:"search_queries,omitempty"`
	SearchResults []Source `json:"search_results,omitempty"`
	PlanSummary   string   `json:"plan_summary,omitempty"`
	PlanFeedback  string   `json:"plan_feedback,omitempty"`

	ExtractedSources   []Source `json:"extracted_sources,omitempty"`
	PrioritizedSources []Source `json:"prioritized_sources,omitempty"`

	Claims         []Claim             `json:"claims,omitempty"`
	CitationMap    map[string]Citation `json:"citation_map,omitempty"`
	ClaimsFeedback string              `json:"claims_feedback,omitempty"`

	Outline        string `json:"outline,omitempty"`
	HumanFeedback  string `json:"human_feedback,omitempty"`
	TonePrefs      string `json:"tone_prefs,omitempty"`
	Brief          string `json:"brief,omitempty"`
	FormattedBrief string `json:"formatted_brief,omitempty"`

	Status          Status         `json:"status,omitempty"`
	WaitingForHuman bool           `json:"waiting_for_human"`
	CheckpointType  CheckpointType `json:"checkpoint_type,omitempty"`
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	clone := *s
	clone.SearchQueries = append([]string(nil), s.SearchQueries...)
	clone.SearchResults = append([]Source(nil), s.SearchResults...)
	clone.ExtractedSources = append([]Source(nil), s.ExtractedSources...)
	clone.PrioritizedSources = append([]Source(nil), s.PrioritizedSources...)
	if s.Claims != nil {
		clone.Claims = make([]Claim, len(s.Claims))
		for i, c := range s.Claims {
			c.Citations = append([]string(nil), c.Citations...)
			clone.Claims[i] = c
		}
	}
	if s.CitationMap != nil {
		clone.CitationMap = make(map[string]Citation, len(s.CitationMap))
		for k, v := range s.CitationMap {
			clone.CitationMap[k] = v
		}
	}
	return &clone
}

// Update is a partial state record returned by a stage function. Nil fields
// are left untouched; set fields overwrite with last-write-wins semantics.
// There is no deep merge.
type Update struct {
	Topic *string
	Seed  *int64

	SearchQueries []string
	SearchResults []Source
	PlanSummary   *string
	PlanFeedback  *string

	ExtractedSources   []Source
	PrioritizedSources []Source

	Claims         []Claim
	CitationMap    map[string]Citation
	ClaimsFeedback *string

	Outline        *string
	HumanFeedback  *string
	TonePrefs      *string
	Brief          *string
	FormattedBrief *string

	Status          Status
	WaitingForHuman *bool
	CheckpointType  *CheckpointType
}

// String returns a pointer to s, for building updates.
func String(s string) *string { return &s }

// Int64 returns a pointer to n, for building updates.
func Int64(n int64) *int64 { return &n }

// Bool returns a pointer to b, for building updates.
func Bool(b bool) *bool { return &b }

// CheckpointTypePtr returns a pointer to t, for building updates.
func CheckpointTypePtr(t CheckpointType) *CheckpointType { return &t }

// Apply merges an update into the state, validating enum fields. A failed
// validation leaves the state unchanged.
func (s *State) Apply(u Update) error {
	if u.Status != "" && !u.Status.Valid() {
		return NewValidationError("unknown status %q", u.Status)
	}
	if u.CheckpointType != nil && *u.CheckpointType != "" && !u.CheckpointType.Valid() {
		return NewValidationError("unknown checkpoint type %q", *u.CheckpointType)
	}
	if u.Topic != nil {
		s.Topic = *u.Topic
	}
	if u.Seed != nil {
		s.Seed = *u.Seed
	}
	if u.SearchQueries != nil {
		s.SearchQueries = u.SearchQueries
	}
	if u.SearchResults != nil {
		s.SearchResults = u.SearchResults
	}
	if u.PlanSummary != nil {
		s.PlanSummary = *u.PlanSummary
	}
	if u.PlanFeedback != nil {
		s.PlanFeedback = *u.PlanFeedback
	}
	if u.ExtractedSources != nil {
		s.ExtractedSources = u.ExtractedSources
	}
	if u.PrioritizedSources != nil {
		s.PrioritizedSources = u.PrioritizedSources
	}
	if u.Claims != nil {
		s.Claims = u.Claims
	}
	if u.CitationMap != nil {
		s.CitationMap = u.CitationMap
	}
	if u.ClaimsFeedback != nil {
		s.ClaimsFeedback = *u.ClaimsFeedback
	}
	if u.Outline != nil {
		s.Outline = *u.Outline
	}
	if u.HumanFeedback != nil {
		s.HumanFeedback = *u.HumanFeedback
	}
	if u.TonePrefs != nil {
		s.TonePrefs = *u.TonePrefs
	}
	if u.Brief != nil {
		s.Brief = *u.Brief
	}
	if u.FormattedBrief != nil {
		s.FormattedBrief = *u.FormattedBrief
	}
	if u.Status != "" {
		s.Status = u.Status
	}
	if u.WaitingForHuman != nil {
		s.WaitingForHuman = *u.WaitingForHuman
	}
	if u.CheckpointType != nil {
		s.CheckpointType = *u.CheckpointType
	}
	return nil
}

// FeedbackUpdate builds the update that injects a human decision into the
// state field named by the checkpoint type, clearing the suspension flag.
func FeedbackUpdate(checkpointType CheckpointType, decision string) (Update, error) {
	update := Update{
		WaitingForHuman: Bool(false),
		CheckpointType:  CheckpointTypePtr(""),
	}
	switch checkpointType {
	case CheckpointPlanReview:
		update.PlanFeedback = String(decision)
	case CheckpointClaimsReview:
		update.ClaimsFeedback = String(decision)
	case CheckpointReview:
		update.HumanFeedback = String(decision)
	case CheckpointToneReview:
		update.TonePrefs = String(decision)
	default:
		return Update{}, NewValidationError("unknown checkpoint type %q", checkpointType)
	}
	return update, nil
}

func (s *State) String() string {
	return fmt.Sprintf("State(topic=%q, status=%s, waiting=%t)", s.Topic, s.Status, s.WaitingForHuman)
}
