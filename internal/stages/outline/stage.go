package outline

import (
	"context"
	"fmt"

	"github.com/researchops/runcore/internal/llm"
	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/pipeline"
	"github.com/researchops/runcore/internal/runstate"
	"github.com/researchops/runcore/internal/store"
)

// Stage implements pipeline.Stage for spec.md §4.10.
type Stage struct {
	Sink    runstate.EventSink
	LLM     llm.Client
	Sources *store.SourceRepo
	Outline *store.OutlineRepo
	Cfg     Config
}

func New(sink runstate.EventSink, client llm.Client) *Stage {
	return &Stage{
		Sink:    sink,
		LLM:     client,
		Sources: store.NewSourceRepo(),
		Outline: store.NewOutlineRepo(),
		Cfg:     DefaultConfig(),
	}
}

func (s *Stage) Name() string { return model.StageOutline }

func (s *Stage) Run(ctx context.Context, tx store.DBTX, sc pipeline.StageContext) (pipeline.StageOutcome, error) {
	runSources, err := s.Sources.ListRunSources(ctx, tx, sc.TenantID, sc.RunID)
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("list run sources: %w", err)
	}
	sourceCount := len(runSources)

	sections, err := generate(ctx, s.LLM, s.Cfg, sc.Run.Question, sourceCount)
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("generate outline: %w", err)
	}
	sections = normalize(sections)

	violations := validate(s.Cfg, sections, sourceCount)
	if len(violations) > 0 {
		s.emit(ctx, sc, "outline.validation_failed", map[string]any{"violations": violations})
		repaired, err := repair(ctx, s.LLM, sc.Run.Question, violations, sections)
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("repair outline: %w", err)
		}
		repaired = normalize(repaired)
		secondViolations := validate(s.Cfg, repaired, sourceCount)
		if len(secondViolations) > 0 {
			return pipeline.StageOutcome{}, fmt.Errorf("outline failed validation twice: %v", secondViolations)
		}
		sections = repaired
	}

	runSections := make([]model.RunSection, len(sections))
	notes := make([]model.OutlineNote, len(sections))
	for i, sp := range sections {
		runSections[i] = model.RunSection{
			TenantID:     sc.TenantID,
			RunID:        sc.RunID,
			SectionID:    sp.SectionID,
			Title:        sp.Title,
			Goal:         sp.Goal,
			SectionOrder: sp.SectionOrder,
		}
		notes[i] = model.OutlineNote{
			TenantID:                sc.TenantID,
			RunID:                   sc.RunID,
			SectionID:               sp.SectionID,
			KeyPoints:               sp.KeyPoints,
			SuggestedEvidenceThemes: sp.SuggestedEvidenceThemes,
		}
	}

	if err := s.Outline.ReplaceSections(ctx, tx, sc.TenantID, sc.RunID, runSections, notes); err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("persist outline: %w", err)
	}

	s.emit(ctx, sc, "outline.created", map[string]any{"section_count": len(sections)})

	return pipeline.StageOutcome{Summary: map[string]any{
		"section_count": len(sections),
		"repaired":      len(violations) > 0,
	}}, nil
}

func (s *Stage) emit(ctx context.Context, sc pipeline.StageContext, eventType string, payload map[string]any) {
	stage := model.StageOutline
	_, _ = s.Sink.Emit(ctx, sc.TenantID, sc.RunID, eventType, model.LevelInfo, eventType, &stage, payload)
}

var _ pipeline.Stage = (*Stage)(nil)
