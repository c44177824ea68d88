package evidencepack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/researchops/runcore/internal/llm"
	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/pipeline"
	"github.com/researchops/runcore/internal/runstate"
	"github.com/researchops/runcore/internal/store"
)

// Stage implements pipeline.Stage for spec.md §4.9: per-section vector
// search over the run's selected sources, with threshold relaxation when a
// section comes up short and diversity-capped snippet selection.
type Stage struct {
	Sink     runstate.EventSink
	Embedder llm.Embedder
	Sources  *store.SourceRepo
	Outline  *store.OutlineRepo
	Evidence *store.EvidenceRepo
	Cfg      Config
}

func New(sink runstate.EventSink, embedder llm.Embedder) *Stage {
	return &Stage{
		Sink:     sink,
		Embedder: embedder,
		Sources:  store.NewSourceRepo(),
		Outline:  store.NewOutlineRepo(),
		Evidence: store.NewEvidenceRepo(),
		Cfg:      DefaultConfig(),
	}
}

func (s *Stage) Name() string { return model.StageEvidencePack }

func (s *Stage) Run(ctx context.Context, tx store.DBTX, sc pipeline.StageContext) (pipeline.StageOutcome, error) {
	runSources, err := s.Sources.ListRunSources(ctx, tx, sc.TenantID, sc.RunID)
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("list run sources: %w", err)
	}
	if len(runSources) == 0 {
		return pipeline.StageOutcome{}, fmt.Errorf("evidence pack: run has no selected sources")
	}
	sourceIDs := make([]model.SourceID, len(runSources))
	for i, rs := range runSources {
		sourceIDs[i] = rs.SourceID
	}

	if err := s.ensureSnippets(ctx, tx, sc, sourceIDs); err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("ensure snippets: %w", err)
	}

	sections, err := s.Outline.ListSections(ctx, tx, sc.TenantID, sc.RunID)
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("list sections: %w", err)
	}
	if len(sections) == 0 {
		return pipeline.StageOutcome{}, fmt.Errorf("evidence pack: run has no outline sections")
	}

	totalSnippets := 0
	for _, section := range sections {
		note, err := s.Outline.GetNote(ctx, tx, sc.TenantID, sc.RunID, section.SectionID)
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("get outline note %s: %w", section.SectionID, err)
		}

		queryText := sectionQueryText(section, note)
		selected, err := s.selectSnippetsForSection(ctx, tx, sc, sourceIDs, queryText)
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("select snippets for %s: %w", section.SectionID, err)
		}

		ids := make([]model.SnippetID, len(selected))
		for i, sn := range selected {
			ids[i] = sn.Snippet.ID
		}
		if err := s.Evidence.ReplaceForSection(ctx, tx, sc.TenantID, sc.RunID, section.SectionID, ids); err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("persist evidence for %s: %w", section.SectionID, err)
		}

		totalSnippets += len(selected)
		s.emit(ctx, sc, "evidence_pack.created", map[string]any{
			"section_id":    section.SectionID,
			"snippet_count": len(selected),
		})
	}

	return pipeline.StageOutcome{Summary: map[string]any{
		"section_count": len(sections),
		"snippet_total": totalSnippets,
	}}, nil
}

// selectSnippetsForSection runs the threshold-relaxation vector search,
// then the diversity-capped selection, retrying with a relaxed cap if the
// first pass comes up short of SnippetMin — grounded on
// evidence_packer.py's per-section search loop.
func (s *Stage) selectSnippetsForSection(ctx context.Context, tx store.DBTX, sc pipeline.StageContext, sourceIDs []model.SourceID, queryText string) ([]scoredSnippet, error) {
	results, err := s.searchWithRelaxation(ctx, tx, sc, sourceIDs, queryText)
	if err != nil {
		return nil, err
	}
	deduped := dedupeResults(results)

	selected := selectDiverseSnippets(deduped, s.Cfg.SnippetMax, s.Cfg.PerSourceCap)
	if len(selected) < s.Cfg.SnippetMin && len(deduped) > len(selected) {
		// Relax the per-source cap so a section dominated by one strong
		// source can still reach the floor.
		selected = selectDiverseSnippets(deduped, s.Cfg.SnippetMax, 0)
	}
	return selected, nil
}

// searchWithRelaxation runs the primary vector search and, if it returns
// fewer than MinRequired hits above MinSimilarity, re-searches with a
// wider limit and a lowered floor, merging both passes — grounded on
// evidence_packer.py's threshold-relaxation retry.
func (s *Stage) searchWithRelaxation(ctx context.Context, tx store.DBTX, sc pipeline.StageContext, sourceIDs []model.SourceID, queryText string) ([]scoredSnippet, error) {
	if s.Embedder == nil {
		return nil, fmt.Errorf("evidence pack: no embedder configured")
	}
	vectors, err := s.Embedder.EmbedTexts(ctx, []string{queryText})
	if err != nil || len(vectors) == 0 {
		return nil, fmt.Errorf("embed section query: %w", err)
	}
	queryVec := vectors[0]

	first, err := s.search(ctx, tx, sc, sourceIDs, queryVec, s.Cfg.SearchLimit, s.Cfg.MinSimilarity)
	if err != nil {
		return nil, err
	}
	if len(first) >= s.Cfg.MinRequired {
		return first, nil
	}

	floor := s.Cfg.MinSimilarity - 0.15
	if floor < 0 {
		floor = 0
	}
	second, err := s.search(ctx, tx, sc, sourceIDs, queryVec, s.Cfg.SearchLimit+30, floor)
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

func (s *Stage) search(ctx context.Context, tx store.DBTX, sc pipeline.StageContext, sourceIDs []model.SourceID, queryVec []float32, limit int, minSimilarity float64) ([]scoredSnippet, error) {
	snippets, sims, err := s.Sources.SearchSnippetsByCosine(ctx, tx, sc.TenantID, s.Cfg.EmbeddingModel, sourceIDs, queryVec, limit)
	if err != nil {
		return nil, fmt.Errorf("search snippets: %w", err)
	}
	out := make([]scoredSnippet, 0, len(snippets))
	for i, sn := range snippets {
		if sims[i] < minSimilarity {
			continue
		}
		out = append(out, scoredSnippet{Snippet: sn, Similarity: sims[i]})
	}
	return out, nil
}

// ensureSnippets synthesizes one abstract-derived snippet (and its
// embedding) for any selected source that has no ingested snippets at
// all, so the vector search always has something to find — grounded on
// evidence_packer.py's _ensure_snippets_from_abstracts.
func (s *Stage) ensureSnippets(ctx context.Context, tx store.DBTX, sc pipeline.StageContext, sourceIDs []model.SourceID) error {
	for _, sourceID := range sourceIDs {
		existing, err := s.Sources.ListSnippetsForSource(ctx, tx, sc.TenantID, sourceID)
		if err != nil {
			return fmt.Errorf("list snippets for source %s: %w", sourceID, err)
		}
		if len(existing) > 0 {
			continue
		}
		// No chunked snippets were ingested for this source (the
		// connector returned only title/abstract metadata); fall back to
		// treating the abstract itself as the citable unit.
		source, err := s.Sources.GetSource(ctx, tx, sc.TenantID, sourceID)
		if err != nil {
			return fmt.Errorf("reload source %s: %w", sourceID, err)
		}
		text := strings.TrimSpace(source.Title + ". " + abstractOf(source))
		if text == "" || text == "." {
			continue
		}
		snippet, err := s.Sources.InsertSnippet(ctx, tx, sc.TenantID, sourceID, text, 0, len(text))
		if err != nil {
			return fmt.Errorf("insert fallback snippet for %s: %w", sourceID, err)
		}
		if s.Embedder == nil {
			continue
		}
		vectors, err := s.Embedder.EmbedTexts(ctx, []string{text})
		if err != nil || len(vectors) == 0 {
			continue
		}
		if err := s.Sources.UpsertSnippetEmbedding(ctx, tx, sc.TenantID, snippet.ID, s.Cfg.EmbeddingModel, vectors[0]); err != nil {
			return fmt.Errorf("embed fallback snippet for %s: %w", sourceID, err)
		}
	}
	return nil
}

// abstractOf reads the free-text abstract the Retrieve stage stashed into
// metadata_json (abstract text has no dedicated column), degrading to
// empty if absent or unparseable.
func abstractOf(source model.Source) string {
	if len(source.MetadataJSON) == 0 {
		return ""
	}
	var meta struct {
		Abstract string `json:"abstract"`
	}
	if err := json.Unmarshal(source.MetadataJSON, &meta); err != nil {
		return ""
	}
	return meta.Abstract
}

func sectionQueryText(section model.RunSection, note model.OutlineNote) string {
	parts := []string{section.Title, section.Goal}
	parts = append(parts, note.KeyPoints...)
	parts = append(parts, note.SuggestedEvidenceThemes...)
	return strings.Join(parts, ". ")
}

func (s *Stage) emit(ctx context.Context, sc pipeline.StageContext, eventType string, payload map[string]any) {
	stage := model.StageEvidencePack
	_, _ = s.Sink.Emit(ctx, sc.TenantID, sc.RunID, eventType, model.LevelInfo, eventType, &stage, payload)
}

var _ pipeline.Stage = (*Stage)(nil)
