// Package stages implements the briefing production pipeline: research
// planning, web retrieval, claims extraction, outline synthesis, and
// formatting, with four human review checkpoints along the way.
package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deepnoodle-ai/briefing"
	"github.com/deepnoodle-ai/briefing/llm"
	"github.com/deepnoodle-ai/briefing/research"
)

// Node names of the pipeline graph.
const (
	NodeInput         = "input"
	NodeSearchPlan    = "search_plan"
	NodePlanDraft     = "plan_draft"
	NodePlanReview    = "plan_review"
	NodeWebSearch     = "web_search"
	NodeExtract       = "extract"
	NodePrioritize    = "prioritize"
	NodeClaimsExtract = "claims_extract"
	NodeClaimsReview  = "claims_review"
	NodeSynthesize    = "synthesize"
	NodeReview        = "review"
	NodeRefine        = "refine"
	NodeToneReview    = "tone_review"
	NodeToneApply     = "tone_apply"
	NodeGenerateBrief = "generate_brief"
	NodeFormat        = "format"
)

// DefaultSeed is used when a session is created without one.
const DefaultSeed = 42

// Dependencies are the external collaborators the pipeline stages call.
// LLM and Searcher are required; the rest default to sensible
// implementations.
type Dependencies struct {
	LLM      llm.Client
	Searcher research.Searcher
	Fetcher  research.Fetcher
	Reviewer briefing.Reviewer
	Logger   *slog.Logger
}

// revision returns the trimmed revision text in a feedback field. ok is
// false when the field is empty, still pending, or holds one of the given
// terminal sentinels.
func revision(feedback string, sentinels ...string) (string, bool) {
	trimmed := strings.TrimSpace(feedback)
	lowered := strings.ToLower(trimmed)
	if lowered == "" || lowered == briefing.FeedbackPending {
		return "", false
	}
	for _, sentinel := range sentinels {
		if lowered == sentinel {
			return "", false
		}
	}
	return trimmed, true
}

func newInputStage() briefing.Stage {
	return briefing.NewStageFunction(NodeInput, func(ctx context.Context, state *briefing.State) (briefing.Update, error) {
		topic := strings.TrimSpace(state.Topic)
		if topic == "" {
			return briefing.Update{}, briefing.NewValidationError("topic is required")
		}
		seed := state.Seed
		if seed == 0 {
			seed = DefaultSeed
		}
		return briefing.Update{
			Topic:  briefing.String(topic),
			Seed:   briefing.Int64(seed),
			Status: briefing.StatusInput,
		}, nil
	})
}

// newSearchPlanStage plans up to five search queries. Plan revision
// feedback is folded into the planning prompt as constraints and then
// normalized to the approved sentinel so the replan loop terminates.
func newSearchPlanStage(deps Dependencies) briefing.Stage {
	return briefing.NewStageFunction(NodeSearchPlan, func(ctx context.Context, state *briefing.State) (briefing.Update, error) {
		guidedTopic := state.Topic
		constraints, consumed := revision(state.PlanFeedback, briefing.FeedbackApprove)
		if consumed {
			guidedTopic = fmt.Sprintf("%s (constraints: %s)", state.Topic, constraints)
		}

		response, err := deps.LLM.Complete(ctx, prompt("plan_queries.txt", map[string]string{
			"topic": guidedTopic,
		}))
		if err != nil {
			return briefing.Update{}, err
		}
		var queries []string
		for _, line := range strings.Split(response, "\n") {
			query := strings.TrimSpace(strings.TrimLeft(line, "-* \t"))
			if query == "" {
				continue
			}
			queries = append(queries, query)
			if len(queries) == research.MaxQueries {
				break
			}
		}
		deps.Logger.Debug("search plan ready", "queries", len(queries))

		update := briefing.Update{
			SearchQueries: queries,
			Status:        briefing.StatusSearchPlanning,
		}
		if consumed {
			update.PlanFeedback = briefing.String(briefing.FeedbackApprove)
		}
		return update, nil
	})
}

func newPlanDraftStage(deps Dependencies) briefing.Stage {
	return briefing.NewStageFunction(NodePlanDraft, func(ctx context.Context, state *briefing.State) (briefing.Update, error) {
		plan, err := deps.LLM.Complete(ctx, prompt("plan_brief.txt", map[string]string{
			"topic":   state.Topic,
			"queries": strings.Join(state.SearchQueries, "\n"),
		}))
		if err != nil {
			return briefing.Update{}, err
		}
		return briefing.Update{
			PlanSummary: briefing.String(plan),
			Status:      briefing.StatusPlanDrafting,
		}, nil
	})
}

func newPlanReviewStage(deps Dependencies) briefing.Stage {
	return briefing.NewReviewStage(briefing.ReviewStageOptions{
		Name:           NodePlanReview,
		CheckpointType: briefing.CheckpointPlanReview,
		Status:         briefing.StatusPlanReview,
		Reviewer:       deps.Reviewer,
		Feedback:       func(state *briefing.State) string { return state.PlanFeedback },
		SetFeedback: func(decision string) briefing.Update {
			return briefing.Update{PlanFeedback: briefing.String(decision)}
		},
	})
}

func newWebSearchStage(deps Dependencies) briefing.Stage {
	return briefing.NewStageFunction(NodeWebSearch, func(ctx context.Context, state *briefing.State) (briefing.Update, error) {
		queries := append(research.DefaultQueries(state.Topic), state.SearchQueries...)
		results, err := research.Run(ctx, deps.Searcher, queries, deps.Logger)
		if err != nil {
			return briefing.Update{}, err
		}
		deps.Logger.Debug("web search done", "queries", len(queries), "results", len(results))
		return briefing.Update{
			SearchResults: results,
			Status:        briefing.StatusSearching,
		}, nil
	})
}

// newExtractStage enriches each search hit with fetched page text. Fetch
// failures leave the content empty rather than failing the stage.
func newExtractStage(deps Dependencies) briefing.Stage {
	return briefing.NewStageFunction(NodeExtract, func(ctx context.Context, state *briefing.State) (briefing.Update, error) {
		enriched := make([]briefing.Source, len(state.SearchResults))
		for i, source := range state.SearchResults {
			if err := ctx.Err(); err != nil {
				return briefing.Update{}, err
			}
			content, err := deps.Fetcher.Fetch(ctx, source.URL)
			if err != nil {
				deps.Logger.Debug("page fetch failed", "url", source.URL, "error", err)
				content = ""
			}
			source.Content = content
			enriched[i] = source
		}
		return briefing.Update{
			ExtractedSources: enriched,
			Status:           briefing.StatusExtracting,
		}, nil
	})
}

func newPrioritizeStage(deps Dependencies) briefing.Stage {
	return briefing.NewStageFunction(NodePrioritize, func(ctx context.Context, state *briefing.State) (briefing.Update, error) {
		prioritized := research.Prioritize(state.ExtractedSources)
		deps.Logger.Debug("sources prioritized",
			"in", len(state.ExtractedSources), "kept", len(prioritized))
		return briefing.Update{
			PrioritizedSources: prioritized,
			Status:             briefing.StatusPrioritizing,
		}, nil
	})
}

type claimsResponse struct {
	Claims      []briefing.Claim             `json:"claims"`
	CitationMap map[string]briefing.Citation `json:"citation_map"`
}

// parseClaims decodes the model's claims JSON. A response that is not
// valid JSON degrades to a single synthetic claim wrapping the raw text,
// with no citations.
func parseClaims(raw string) ([]briefing.Claim, map[string]briefing.Citation) {
	var decoded claimsResponse
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return []briefing.Claim{{ID: 1, Text: raw, Citations: []string{}}},
			map[string]briefing.Citation{}
	}
	if decoded.CitationMap == nil {
		decoded.CitationMap = map[string]briefing.Citation{}
	}
	return decoded.Claims, decoded.CitationMap
}

func newClaimsExtractStage(deps Dependencies) briefing.Stage {
	return briefing.NewStageFunction(NodeClaimsExtract, func(ctx context.Context, state *briefing.State) (briefing.Update, error) {
		raw, err := deps.LLM.Complete(ctx, prompt("extract_claims.txt", map[string]string{
			"topic":   state.Topic,
			"sources": formatSources(state.PrioritizedSources),
		}))
		if err != nil {
			return briefing.Update{}, err
		}
		claims, citationMap := parseClaims(raw)
		deps.Logger.Debug("claims extracted", "claims", len(claims))
		return briefing.Update{
			Claims:      claims,
			CitationMap: citationMap,
			Status:      briefing.StatusClaimsExtract,
		}, nil
	})
}

func newClaimsReviewStage(deps Dependencies) briefing.Stage {
	return briefing.NewReviewStage(briefing.ReviewStageOptions{
		Name:           NodeClaimsReview,
		CheckpointType: briefing.CheckpointClaimsReview,
		Status:         briefing.StatusClaimsReview,
		Reviewer:       deps.Reviewer,
		Feedback:       func(state *briefing.State) string { return state.ClaimsFeedback },
		SetFeedback: func(decision string) briefing.Update {
			return briefing.Update{ClaimsFeedback: briefing.String(decision)}
		},
	})
}

// newSynthesizeStage builds the outline. Plan constraints and claims
// review notes are folded into the topic hint when they carry actual
// revision text.
func newSynthesizeStage(deps Dependencies) briefing.Stage {
	return briefing.NewStageFunction(NodeSynthesize, func(ctx context.Context, state *briefing.State) (briefing.Update, error) {
		topicHint := state.Topic
		if constraints, ok := revision(state.PlanFeedback, briefing.FeedbackApprove); ok {
			topicHint += " | Constraints: " + constraints
		}
		if notes, ok := revision(state.ClaimsFeedback, briefing.FeedbackApprove); ok {
			topicHint += " | Verified-claims-notes: " + notes
		}
		outline, err := deps.LLM.Complete(ctx, prompt("synthesize_outline.txt", map[string]string{
			"topic":   topicHint,
			"sources": formatSources(state.PrioritizedSources),
		}))
		if err != nil {
			return briefing.Update{}, err
		}
		return briefing.Update{
			Outline: briefing.String(outline),
			Status:  briefing.StatusSynthesizing,
		}, nil
	})
}

func newReviewStage(deps Dependencies) briefing.Stage {
	return briefing.NewReviewStage(briefing.ReviewStageOptions{
		Name:           NodeReview,
		CheckpointType: briefing.CheckpointReview,
		Status:         briefing.StatusReview,
		Reviewer:       deps.Reviewer,
		Feedback:       func(state *briefing.State) string { return state.HumanFeedback },
		SetFeedback: func(decision string) briefing.Update {
			return briefing.Update{HumanFeedback: briefing.String(decision)}
		},
	})
}

// newRefineStage applies outline revision feedback, then normalizes the
// consumed feedback to the approved sentinel.
func newRefineStage(deps Dependencies) briefing.Stage {
	return briefing.NewStageFunction(NodeRefine, func(ctx context.Context, state *briefing.State) (briefing.Update, error) {
		feedback, ok := revision(state.HumanFeedback, briefing.FeedbackApprove)
		if !ok {
			return briefing.Update{Status: briefing.StatusRefining}, nil
		}
		revised, err := deps.LLM.Complete(ctx, prompt("refine_outline.txt", map[string]string{
			"outline":  state.Outline,
			"feedback": feedback,
		}))
		if err != nil {
			return briefing.Update{}, err
		}
		return briefing.Update{
			Outline:       briefing.String(revised),
			HumanFeedback: briefing.String(briefing.FeedbackApprove),
			Status:        briefing.StatusRefining,
		}, nil
	})
}

func newToneReviewStage(deps Dependencies) briefing.Stage {
	return briefing.NewReviewStage(briefing.ReviewStageOptions{
		Name:           NodeToneReview,
		CheckpointType: briefing.CheckpointToneReview,
		Status:         briefing.StatusToneReview,
		Reviewer:       deps.Reviewer,
		Feedback:       func(state *briefing.State) string { return state.TonePrefs },
		SetFeedback: func(decision string) briefing.Update {
			return briefing.Update{TonePrefs: briefing.String(decision)}
		},
	})
}

// newToneApplyStage rewrites the outline in the requested tone, then
// normalizes the consumed preferences to the skip sentinel.
func newToneApplyStage(deps Dependencies) briefing.Stage {
	return briefing.NewStageFunction(NodeToneApply, func(ctx context.Context, state *briefing.State) (briefing.Update, error) {
		prefs, ok := revision(state.TonePrefs, briefing.FeedbackSkip)
		if !ok {
			return briefing.Update{Status: briefing.StatusToneApplying}, nil
		}
		revised, err := deps.LLM.Complete(ctx, prompt("adjust_tone.txt", map[string]string{
			"outline":     state.Outline,
			"preferences": prefs,
		}))
		if err != nil {
			return briefing.Update{}, err
		}
		return briefing.Update{
			Outline:   briefing.String(revised),
			TonePrefs: briefing.String(briefing.FeedbackSkip),
			Status:    briefing.StatusToneApplying,
		}, nil
	})
}

func newGenerateBriefStage(deps Dependencies) briefing.Stage {
	return briefing.NewStageFunction(NodeGenerateBrief, func(ctx context.Context, state *briefing.State) (briefing.Update, error) {
		brief, err := deps.LLM.Complete(ctx, prompt("final_brief.txt", map[string]string{
			"topic":   state.Topic,
			"outline": state.Outline,
		}))
		if err != nil {
			return briefing.Update{}, err
		}
		return briefing.Update{
			Brief:  briefing.String(brief),
			Status: briefing.StatusFinal,
		}, nil
	})
}

func newFormatStage(deps Dependencies) briefing.Stage {
	return briefing.NewStageFunction(NodeFormat, func(ctx context.Context, state *briefing.State) (briefing.Update, error) {
		formatted, err := deps.LLM.Complete(ctx, prompt("format_brief.txt", map[string]string{
			"brief": state.Brief,
		}))
		if err != nil {
			return briefing.Update{}, err
		}
		return briefing.Update{
			FormattedBrief: briefing.String(formatted),
			Status:         briefing.StatusCompleted,
		}, nil
	})
}

const sourceSnippetChars = 400

// formatSources renders sources as keyed entries for prompts, matching
// the citation keys claims extraction is asked to use.
func formatSources(sources []briefing.Source) string {
	var builder strings.Builder
	for i, source := range sources {
		fmt.Fprintf(&builder, "S%d: %s (%s)\n", i+1, source.Title, source.URL)
		text := source.Content
		if text == "" {
			text = source.Snippet
		}
		if len(text) > sourceSnippetChars {
			text = text[:sourceSnippetChars]
		}
		if text != "" {
			fmt.Fprintf(&builder, "  %s\n", text)
		}
	}
	return builder.String()
}
