package evaluator

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/researchops/runcore/internal/llm"
	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/pipeline"
	"github.com/researchops/runcore/internal/runstate"
	"github.com/researchops/runcore/internal/store"
)

// Stage implements pipeline.Stage for spec.md §4.12.
type Stage struct {
	Sink     runstate.EventSink
	LLM      llm.Client
	Outline  *store.OutlineRepo
	Evidence *store.EvidenceRepo
	Sources  *store.SourceRepo
	Drafts   *store.DraftRepo
	Reviews  *store.ReviewRepo
	MaxChars int
}

func New(sink runstate.EventSink, client llm.Client) *Stage {
	maxChars := 800
	if raw := os.Getenv("EVALUATOR_SNIPPET_TEXT_MAX_CHARS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			maxChars = v
		}
	}
	return &Stage{
		Sink:     sink,
		LLM:      client,
		Outline:  store.NewOutlineRepo(),
		Evidence: store.NewEvidenceRepo(),
		Sources:  store.NewSourceRepo(),
		Drafts:   store.NewDraftRepo(),
		Reviews:  store.NewReviewRepo(),
		MaxChars: maxChars,
	}
}

func (s *Stage) Name() string { return model.StageEvaluate }

func (s *Stage) Run(ctx context.Context, tx store.DBTX, sc pipeline.StageContext) (pipeline.StageOutcome, error) {
	sections, err := s.Outline.ListSections(ctx, tx, sc.TenantID, sc.RunID)
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("list sections: %w", err)
	}
	if len(sections) == 0 {
		return pipeline.StageOutcome{}, fmt.Errorf("evaluator: run has no outline sections")
	}

	passCount, failCount := 0, 0
	for _, section := range sections {
		draft, err := s.Drafts.Get(ctx, tx, sc.TenantID, sc.RunID, section.SectionID)
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("evaluator: missing draft for section %s: %w", section.SectionID, err)
		}

		allowedIDs, err := s.Evidence.ListForSection(ctx, tx, sc.TenantID, sc.RunID, section.SectionID)
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("list evidence %s: %w", section.SectionID, err)
		}
		snippets, err := s.Sources.GetSnippetsByIDs(ctx, tx, sc.TenantID, allowedIDs)
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("load snippets %s: %w", section.SectionID, err)
		}
		allowedIDSet := make(map[string]bool, len(allowedIDs))
		for _, id := range allowedIDs {
			allowedIDSet[id.String()] = true
		}

		s.emit(ctx, sc, "evaluate.section_started", map[string]any{"section_id": section.SectionID})

		verdict, err := evaluateSection(ctx, s.LLM, section.SectionID, draft.Text, snippets, s.MaxChars)
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("evaluate section %s: %w", section.SectionID, err)
		}

		issues := normalizeIssues(verdict.Issues, allowedIDSet)
		finalVerdict := model.VerdictPass
		if verdict.Verdict == "fail" || len(issues) > 0 {
			finalVerdict = model.VerdictFail
		}

		if _, err := s.Reviews.Upsert(ctx, tx, sc.TenantID, sc.RunID, section.SectionID, finalVerdict, issues); err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("persist review %s: %w", section.SectionID, err)
		}

		if finalVerdict == model.VerdictPass {
			passCount++
		} else {
			failCount++
		}
		s.emit(ctx, sc, "evaluate.section_completed", map[string]any{
			"section_id": section.SectionID, "verdict": string(finalVerdict), "issue_count": len(issues),
		})
	}

	decision := pipeline.DecisionStopSuccess
	if failCount > 0 {
		decision = pipeline.DecisionContinueRewrite
	}
	s.emit(ctx, sc, "evaluate.summary", map[string]any{"pass_count": passCount, "fail_count": failCount})

	return pipeline.StageOutcome{
		Summary:  map[string]any{"pass_count": passCount, "fail_count": failCount},
		Decision: decision,
	}, nil
}

func (s *Stage) emit(ctx context.Context, sc pipeline.StageContext, eventType string, payload map[string]any) {
	stage := model.StageEvaluate
	_, _ = s.Sink.Emit(ctx, sc.TenantID, sc.RunID, eventType, model.LevelInfo, eventType, &stage, payload)
}

var _ pipeline.Stage = (*Stage)(nil)
