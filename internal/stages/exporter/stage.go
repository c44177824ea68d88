package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/pipeline"
	"github.com/researchops/runcore/internal/runstate"
	"github.com/researchops/runcore/internal/store"
)

// Stage implements pipeline.Stage for spec.md §4.14. It does not itself
// transition the run to succeeded — the Pipeline Coordinator does that
// once every stage (this one included) has returned without error, keeping
// "persist artifacts" and "change run state" as separate responsibilities
// the way internal/runstate's EventSink/transition split already does.
type Stage struct {
	Sink      runstate.EventSink
	Outline   *store.OutlineRepo
	Drafts    *store.DraftRepo
	Evidence  *store.EvidenceRepo
	Sources   *store.SourceRepo
	Artifacts *store.ArtifactRepo
}

func New(sink runstate.EventSink) *Stage {
	return &Stage{
		Sink:      sink,
		Outline:   store.NewOutlineRepo(),
		Drafts:    store.NewDraftRepo(),
		Evidence:  store.NewEvidenceRepo(),
		Sources:   store.NewSourceRepo(),
		Artifacts: store.NewArtifactRepo(),
	}
}

func (s *Stage) Name() string { return model.StageExport }

func (s *Stage) Run(ctx context.Context, tx store.DBTX, sc pipeline.StageContext) (pipeline.StageOutcome, error) {
	sections, err := s.Outline.ListSections(ctx, tx, sc.TenantID, sc.RunID)
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("list sections: %w", err)
	}
	if len(sections) == 0 {
		return pipeline.StageOutcome{}, fmt.Errorf("exporter: run has no outline sections")
	}

	drafts, err := s.Drafts.ListOrdered(ctx, tx, sc.TenantID, sc.RunID)
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("list drafts: %w", err)
	}
	draftBySection := make(map[string]model.DraftSection, len(drafts))
	for _, d := range drafts {
		draftBySection[d.SectionID] = d
	}

	sourceBySnippet, err := s.loadSourcesForRun(ctx, tx, sc)
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("load sources for citation resolution: %w", err)
	}

	var warnings []string
	book := newFootnoteBook()
	var body strings.Builder
	fmt.Fprintf(&body, "# Research Report: %s\n", sc.Run.Question)

	for _, section := range sections {
		draft, ok := draftBySection[section.SectionID]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("section %s has no draft text and was omitted", section.SectionID))
			continue
		}
		fmt.Fprintf(&body, "\n## %d. %s\n\n", section.SectionOrder, section.Title)
		body.WriteString(book.substitute(draft.Text))
		body.WriteString("\n")
	}

	body.WriteString(renderReferences(book, sourceBySnippet))
	content := body.String()

	metadata, err := json.Marshal(map[string]any{
		"text": content,
		"usage": map[string]any{
			"warnings": warnings,
		},
	})
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("marshal artifact metadata: %w", err)
	}

	blobRef := fmt.Sprintf("inline://report_md/%s", sc.RunID.String())
	artifact, err := s.Artifacts.Upsert(ctx, tx, sc.TenantID, sc.ProjectID, sc.RunID,
		model.ArtifactTypeReportMarkdown, blobRef, "text/markdown", int64(len(content)), metadata)
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("upsert report artifact: %w", err)
	}

	s.emit(ctx, sc, "export.completed", map[string]any{
		"artifact_id":    artifact.ID.String(),
		"section_count":  len(sections),
		"footnote_count": len(book.orderedSnippetIDs()),
		"warning_count":  len(warnings),
		"with_warnings":  len(warnings) > 0,
	})

	return pipeline.StageOutcome{Summary: map[string]any{
		"section_count":  len(sections),
		"footnote_count": len(book.orderedSnippetIDs()),
		"warnings":       warnings,
	}}, nil
}

// loadSourcesForRun resolves every snippet id cited anywhere in the run's
// section evidence packs back to its owning Source, the join
// spec.md §4.14 describes as "snippets -> snapshots -> sources" (this
// implementation has no separate snapshot table, so the join is
// snippets -> sources directly).
func (s *Stage) loadSourcesForRun(ctx context.Context, tx store.DBTX, sc pipeline.StageContext) (map[string]model.Source, error) {
	runSources, err := s.Sources.ListRunSources(ctx, tx, sc.TenantID, sc.RunID)
	if err != nil {
		return nil, fmt.Errorf("list run sources: %w", err)
	}

	out := make(map[string]model.Source)
	for _, rs := range runSources {
		source, err := s.Sources.GetSource(ctx, tx, sc.TenantID, rs.SourceID)
		if err != nil {
			return nil, fmt.Errorf("get source %s: %w", rs.SourceID, err)
		}
		snippets, err := s.Sources.ListSnippetsForSource(ctx, tx, sc.TenantID, rs.SourceID)
		if err != nil {
			return nil, fmt.Errorf("list snippets for source %s: %w", rs.SourceID, err)
		}
		for _, sn := range snippets {
			out[sn.ID.String()] = source
		}
	}
	return out, nil
}

func (s *Stage) emit(ctx context.Context, sc pipeline.StageContext, eventType string, payload map[string]any) {
	stage := model.StageExport
	_, _ = s.Sink.Emit(ctx, sc.TenantID, sc.RunID, eventType, model.LevelInfo, eventType, &stage, payload)
}

var _ pipeline.Stage = (*Stage)(nil)
