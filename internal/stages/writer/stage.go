package writer

import (
	"context"
	"fmt"

	"github.com/researchops/runcore/internal/llm"
	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/pipeline"
	"github.com/researchops/runcore/internal/runstate"
	"github.com/researchops/runcore/internal/stages/textutil"
	"github.com/researchops/runcore/internal/store"
)

// Stage implements pipeline.Stage for spec.md §4.11.
type Stage struct {
	Sink     runstate.EventSink
	LLM      llm.Client
	Outline  *store.OutlineRepo
	Evidence *store.EvidenceRepo
	Sources  *store.SourceRepo
	Drafts   *store.DraftRepo
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
		Cfg:      DefaultConfig(),
	}
}

func (s *Stage) Name() string { return model.StageDraft }

func (s *Stage) Run(ctx context.Context, tx store.DBTX, sc pipeline.StageContext) (pipeline.StageOutcome, error) {
	sections, err := s.Outline.ListSections(ctx, tx, sc.TenantID, sc.RunID)
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("list sections: %w", err)
	}
	if len(sections) == 0 {
		return pipeline.StageOutcome{}, fmt.Errorf("writer: run has no outline sections")
	}

	priorSummary := ""
	totalWords := 0
	for i, section := range sections {
		note, err := s.Outline.GetNote(ctx, tx, sc.TenantID, sc.RunID, section.SectionID)
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("get outline note %s: %w", section.SectionID, err)
		}
		allowedIDs, err := s.Evidence.ListForSection(ctx, tx, sc.TenantID, sc.RunID, section.SectionID)
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("list evidence %s: %w", section.SectionID, err)
		}
		snippets, err := s.Sources.GetSnippetsByIDs(ctx, tx, sc.TenantID, allowedIDs)
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("load snippets %s: %w", section.SectionID, err)
		}

		nextTitle := ""
		if i+1 < len(sections) {
			nextTitle = sections[i+1].Title
		}

		s.emit(ctx, sc, "draft.section_started", map[string]any{"section_id": section.SectionID})

		draft, err := generateSection(ctx, s.LLM, sc.Run.Question, i+1, len(sections), section, note, priorSummary, nextTitle, snippets, s.Cfg)
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("generate section %s: %w", section.SectionID, err)
		}

		resolvedText, err := validateSectionText(draft.SectionText, allowedIDs)
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("section %s citation validation: %w", section.SectionID, err)
		}
		if err := validateSectionSummary(draft.SectionSummary); err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("section %s summary validation: %w", section.SectionID, err)
		}
		if err := validateSectionLength(resolvedText, s.Cfg.MinWords); err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("section %s length validation: %w", section.SectionID, err)
		}

		if _, err := s.Drafts.Upsert(ctx, tx, sc.TenantID, sc.RunID, section.SectionID, resolvedText, draft.SectionSummary); err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("persist draft %s: %w", section.SectionID, err)
		}

		priorSummary = draft.SectionSummary
		totalWords += textutil.WordCount(resolvedText)

		s.emit(ctx, sc, "draft.section_completed", map[string]any{"section_id": section.SectionID})
		if (i+1)%3 == 0 {
			s.emit(ctx, sc, "draft.progress", map[string]any{"completed": i + 1, "total": len(sections)})
		}
	}

	return pipeline.StageOutcome{Summary: map[string]any{
		"section_count": len(sections),
		"total_words":   totalWords,
	}}, nil
}

func (s *Stage) emit(ctx context.Context, sc pipeline.StageContext, eventType string, payload map[string]any) {
	stage := model.StageDraft
	_, _ = s.Sink.Emit(ctx, sc.TenantID, sc.RunID, eventType, model.LevelInfo, eventType, &stage, payload)
}

var _ pipeline.Stage = (*Stage)(nil)
