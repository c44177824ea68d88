package repair

import (
	"context"
	"fmt"

	"github.com/researchops/runcore/internal/llm"
	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/pipeline"
	"github.com/researchops/runcore/internal/runstate"
	"github.com/researchops/runcore/internal/store"
)

// errAlreadyRepaired is the fixed error spec.md §4.13 requires when Repair
// is attempted a second time within the same run. The Pipeline Coordinator
// is the primary enforcer (it only ever invokes Repair once per run), but
// this stage refuses a second invocation too, matching the original
// repair_agent.py's own guard rather than relying solely on the caller.
var errAlreadyRepaired = fmt.Errorf("repair already attempted for this run")

// Stage implements pipeline.Stage for spec.md §4.13.
type Stage struct {
	Sink     runstate.EventSink
	LLM      llm.Client
	Outline  *store.OutlineRepo
	Evidence *store.EvidenceRepo
	Sources  *store.SourceRepo
	Drafts   *store.DraftRepo
	Reviews  *store.ReviewRepo
	Runs     *store.RunRepo
	Cfg      Config
}

func New(sink runstate.EventSink, client llm.Client) *Stage {
	return &Stage{
		Sink:     sink,
		LLM:      client,
		Outline:  store.NewOutlineRepo(),
		Evidence: store.NewEvidenceRepo(),
		Sources:  store.NewSourceRepo(),
		Drafts:   store.NewDraftRepo(),
		Reviews:  store.NewReviewRepo(),
		Runs:     store.NewRunRepo(),
		Cfg:      DefaultConfig(),
	}
}

func (s *Stage) Name() string { return model.StageRepair }

func (s *Stage) Run(ctx context.Context, tx store.DBTX, sc pipeline.StageContext) (pipeline.StageOutcome, error) {
	if sc.Run.RepairAttempts > 0 {
		return pipeline.StageOutcome{}, errAlreadyRepaired
	}

	sections, err := s.Outline.ListSections(ctx, tx, sc.TenantID, sc.RunID)
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("list sections: %w", err)
	}
	reviews, err := s.Reviews.ListForRun(ctx, tx, sc.TenantID, sc.RunID)
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("list reviews: %w", err)
	}
	reviewBySection := make(map[string]model.SectionReview, len(reviews))
	for _, r := range reviews {
		reviewBySection[r.SectionID] = r
	}

	repairedCount := 0
	for i, section := range sections {
		review, ok := reviewBySection[section.SectionID]
		if !ok || review.Verdict != model.VerdictFail {
			continue
		}
		var next *model.RunSection
		if i+1 < len(sections) {
			next = &sections[i+1]
		}

		s.emit(ctx, sc, "repair.section_started", map[string]any{"section_id": section.SectionID})
		if err := s.repairSection(ctx, tx, sc, section, review.Issues, next); err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("repair section %s: %w", section.SectionID, err)
		}
		repairedCount++
		s.emit(ctx, sc, "repair.section_completed", map[string]any{"section_id": section.SectionID})
	}

	if err := s.Runs.IncrementRepairAttempts(ctx, tx, sc.TenantID, sc.RunID); err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("increment repair attempts: %w", err)
	}

	return pipeline.StageOutcome{Summary: map[string]any{
		"sections_repaired": repairedCount,
	}}, nil
}

func (s *Stage) repairSection(ctx context.Context, tx store.DBTX, sc pipeline.StageContext, section model.RunSection, issues []model.ReviewIssue, next *model.RunSection) error {
	current, err := s.Drafts.Get(ctx, tx, sc.TenantID, sc.RunID, section.SectionID)
	if err != nil {
		return fmt.Errorf("load current draft: %w", err)
	}

	issueIndices := make(map[int]bool, len(issues))
	for _, iss := range issues {
		issueIndices[iss.SentenceIndex] = true
	}

	allowedIDs, err := s.Evidence.ListForSection(ctx, tx, sc.TenantID, sc.RunID, section.SectionID)
	if err != nil {
		return fmt.Errorf("list evidence: %w", err)
	}

	if len(allowedIDs) == 0 {
		return s.repairMechanically(ctx, tx, sc, section, current, issueIndices, next)
	}
	return s.repairWithLLM(ctx, tx, sc, section, current, issues, issueIndices, allowedIDs, next)
}

// repairMechanically implements spec.md §4.13 point 2: when a section has
// no evidence pack, drop the issue-flagged sentences mechanically and
// synthesize a 2-line summary, then patch the next section's first two
// sentences for continuity, keeping its remainder byte-identical.
func (s *Stage) repairMechanically(ctx context.Context, tx store.DBTX, sc pipeline.StageContext, section model.RunSection, current model.DraftSection, issueIndices map[int]bool, next *model.RunSection) error {
	revisedText := mechanicalDropSentences(current.Text, issueIndices)
	revisedSummary := mechanicalSummary(revisedText)

	if _, err := s.Drafts.Upsert(ctx, tx, sc.TenantID, sc.RunID, section.SectionID, revisedText, revisedSummary); err != nil {
		return fmt.Errorf("persist mechanically repaired section: %w", err)
	}

	if next == nil {
		return nil
	}
	nextDraft, err := s.Drafts.Get(ctx, tx, sc.TenantID, sc.RunID, next.SectionID)
	if err != nil {
		return fmt.Errorf("load next section draft: %w", err)
	}
	patchedNextText := mechanicalNextSectionPatch(nextDraft.Text)
	if err := validateNextSectionPatch(nextDraft.Text, patchedNextText); err != nil {
		return fmt.Errorf("mechanical continuity patch: %w", err)
	}
	if _, err := s.Drafts.Upsert(ctx, tx, sc.TenantID, sc.RunID, next.SectionID, patchedNextText, nextDraft.SectionSummary); err != nil {
		return fmt.Errorf("persist next section patch: %w", err)
	}
	return nil
}

// repairWithLLM implements spec.md §4.13 point 3-6: an LLM call constrained
// to the reported issue sentences, validated for scope preservation, then
// re-run through the same citation/placement/summary/length validators the
// Writer stage uses.
func (s *Stage) repairWithLLM(ctx context.Context, tx store.DBTX, sc pipeline.StageContext, section model.RunSection, current model.DraftSection, issues []model.ReviewIssue, issueIndices map[int]bool, allowedIDs []model.SnippetID, next *model.RunSection) error {
	snippets, err := s.Sources.GetSnippetsByIDs(ctx, tx, sc.TenantID, allowedIDs)
	if err != nil {
		return fmt.Errorf("load current evidence snippets: %w", err)
	}

	var nextSection model.RunSection
	var nextDraft model.DraftSection
	var nextSnippets []model.Snippet
	if next != nil {
		nextSection = *next
		nextDraft, err = s.Drafts.Get(ctx, tx, sc.TenantID, sc.RunID, next.SectionID)
		if err != nil {
			return fmt.Errorf("load next section draft: %w", err)
		}
		nextAllowedIDs, err := s.Evidence.ListForSection(ctx, tx, sc.TenantID, sc.RunID, next.SectionID)
		if err != nil {
			return fmt.Errorf("list next section evidence: %w", err)
		}
		nextSnippets, err = s.Sources.GetSnippetsByIDs(ctx, tx, sc.TenantID, nextAllowedIDs)
		if err != nil {
			return fmt.Errorf("load next section snippets: %w", err)
		}
	}

	resp, err := requestRepair(ctx, s.LLM, section, current.Text, current.SectionSummary, issues,
		snippets, nextSection, nextDraft.Text, nextSnippets, s.Cfg)
	if err != nil {
		return fmt.Errorf("request repair: %w", err)
	}

	if err := validateScope(current.Text, resp.SectionText, issueIndices); err != nil {
		return fmt.Errorf("scope validation: %w", err)
	}
	resolvedText, err := validateSectionText(resp.SectionText, allowedIDs)
	if err != nil {
		return fmt.Errorf("citation validation: %w", err)
	}
	if err := validateSectionSummary(resp.SectionSummary); err != nil {
		return fmt.Errorf("summary validation: %w", err)
	}
	if err := validateSectionLength(resolvedText, s.Cfg.MinWords); err != nil {
		return fmt.Errorf("length validation: %w", err)
	}

	if _, err := s.Drafts.Upsert(ctx, tx, sc.TenantID, sc.RunID, section.SectionID, resolvedText, resp.SectionSummary); err != nil {
		return fmt.Errorf("persist repaired section: %w", err)
	}

	if next == nil {
		return nil
	}
	if err := validateNextSectionPatch(nextDraft.Text, resp.ContinuityPatch.NextSectionText); err != nil {
		return fmt.Errorf("continuity patch validation: %w", err)
	}
	if _, err := s.Drafts.Upsert(ctx, tx, sc.TenantID, sc.RunID, next.SectionID, resp.ContinuityPatch.NextSectionText, nextDraft.SectionSummary); err != nil {
		return fmt.Errorf("persist continuity patch: %w", err)
	}
	return nil
}

func (s *Stage) emit(ctx context.Context, sc pipeline.StageContext, eventType string, payload map[string]any) {
	stage := model.StageRepair
	_, _ = s.Sink.Emit(ctx, sc.TenantID, sc.RunID, eventType, model.LevelInfo, eventType, &stage, payload)
}

var _ pipeline.Stage = (*Stage)(nil)
