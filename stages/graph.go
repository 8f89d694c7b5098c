package stages

import (
	"io"
	"log/slog"

	"github.com/deepnoodle-ai/briefing"
	"github.com/deepnoodle-ai/briefing/research"
)

// NewGraph assembles the briefing pipeline graph:
//
//	input → search_plan → plan_draft → plan_review
//	plan_review: replan → search_plan, continue → web_search
//	web_search → extract → prioritize → claims_extract → claims_review
//	claims_review → synthesize → review
//	review: refine → refine, generate_brief → tone_review
//	refine → tone_review
//	tone_review: apply → tone_apply, skip → generate_brief
//	tone_apply → generate_brief → format → end
//
// The tone checkpoint is offered on both review outcomes, so an approved
// outline still gets a chance at a tone pass before the final brief.
func NewGraph(deps Dependencies) (*briefing.Graph, error) {
	if deps.LLM == nil {
		return nil, briefing.NewValidationError("llm client is required")
	}
	if deps.Searcher == nil {
		return nil, briefing.NewValidationError("searcher is required")
	}
	if deps.Fetcher == nil {
		deps.Fetcher = research.NewHTTPFetcher(nil)
	}
	if deps.Reviewer == nil {
		deps.Reviewer = briefing.NewAsyncReviewer()
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return briefing.NewGraph(NodeInput, []*briefing.Node{
		{Name: NodeInput, Stage: newInputStage(), Next: NodeSearchPlan},
		{Name: NodeSearchPlan, Stage: newSearchPlanStage(deps), Next: NodePlanDraft},
		{Name: NodePlanDraft, Stage: newPlanDraftStage(deps), Next: NodePlanReview},
		{Name: NodePlanReview, Stage: newPlanReviewStage(deps), Branch: &briefing.ConditionalEdge{
			Route: briefing.ReplanGate,
			Targets: map[briefing.Decision]string{
				briefing.DecisionReplan:   NodeSearchPlan,
				briefing.DecisionContinue: NodeWebSearch,
			},
		}},
		{Name: NodeWebSearch, Stage: newWebSearchStage(deps), Next: NodeExtract},
		{Name: NodeExtract, Stage: newExtractStage(deps), Next: NodePrioritize},
		{Name: NodePrioritize, Stage: newPrioritizeStage(deps), Next: NodeClaimsExtract},
		{Name: NodeClaimsExtract, Stage: newClaimsExtractStage(deps), Next: NodeClaimsReview},
		{Name: NodeClaimsReview, Stage: newClaimsReviewStage(deps), Next: NodeSynthesize},
		{Name: NodeSynthesize, Stage: newSynthesizeStage(deps), Next: NodeReview},
		{Name: NodeReview, Stage: newReviewStage(deps), Branch: &briefing.ConditionalEdge{
			Route: briefing.RevisionGate,
			Targets: map[briefing.Decision]string{
				briefing.DecisionRefine:        NodeRefine,
				briefing.DecisionGenerateBrief: NodeToneReview,
			},
		}},
		{Name: NodeRefine, Stage: newRefineStage(deps), Next: NodeToneReview},
		{Name: NodeToneReview, Stage: newToneReviewStage(deps), Branch: &briefing.ConditionalEdge{
			Route: briefing.ToneGate,
			Targets: map[briefing.Decision]string{
				briefing.DecisionApply: NodeToneApply,
				briefing.DecisionSkip:  NodeGenerateBrief,
			},
		}},
		{Name: NodeToneApply, Stage: newToneApplyStage(deps), Next: NodeGenerateBrief},
		{Name: NodeGenerateBrief, Stage: newGenerateBriefStage(deps), Next: NodeFormat},
		{Name: NodeFormat, Stage: newFormatStage(deps)},
	})
}
