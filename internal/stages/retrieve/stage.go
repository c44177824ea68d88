package retrieve

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/researchops/runcore/internal/connectors"
	"github.com/researchops/runcore/internal/llm"
	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/pipeline"
	"github.com/researchops/runcore/internal/runstate"
	"github.com/researchops/runcore/internal/store"
)

// Stage implements pipeline.Stage for spec.md §4.8. It is constructed once
// per worker process (connectors, LLM and embedding clients are expensive
// to build) and is safe for concurrent use across jobs.
type Stage struct {
	Sink       runstate.EventSink
	LLM        llm.Client
	Embedder   llm.Embedder
	Connectors []connectors.SourceConnector
	Sources    *store.SourceRepo
	Cfg        Config
}

func New(sink runstate.EventSink, client llm.Client, embedder llm.Embedder, conns []connectors.SourceConnector) *Stage {
	return &Stage{
		Sink:       sink,
		LLM:        client,
		Embedder:   embedder,
		Connectors: conns,
		Sources:    store.NewSourceRepo(),
		Cfg:        DefaultConfig(),
	}
}

func (s *Stage) Name() string { return model.StageRetrieve }

func (s *Stage) Run(ctx context.Context, tx store.DBTX, sc pipeline.StageContext) (pipeline.StageOutcome, error) {
	stage := model.StageRetrieve

	plan, llmUsed, err := BuildQueryPlan(ctx, s.LLM, sc.Run.Question)
	if err != nil {
		return pipeline.StageOutcome{}, fmt.Errorf("build query plan: %w", err)
	}
	s.emit(ctx, sc, "retrieve.plan_created", map[string]any{
		"query_count": len(plan),
		"llm_used":    llmUsed,
	})

	hits, intentHits := s.fanOut(ctx, sc, plan)

	deduped, dedupStats := connectors.Deduplicate(hits, "openalex")
	s.emit(ctx, sc, "retrieve.summary", map[string]any{
		"query_count":      len(plan),
		"llm_used":         llmUsed,
		"found_total":      dedupStats.TotalInput,
		"deduped_sources":  dedupStats.UniqueCount,
		"intent_counts":    intentHits,
	})

	docs := make([]candidateDoc, 0, len(deduped))
	bySourceKey := make(map[string]connectors.RetrievedSource, len(deduped))
	for _, src := range deduped {
		key := canonicalKey(src.CanonicalID)
		bySourceKey[key] = src
		docs = append(docs, candidateDoc{
			CanonicalKey: key,
			Title:        src.Title,
			Abstract:     src.Abstract,
			Year:         src.Year,
			CitedByCount: src.CitedByCount,
			tokens:       bm25Tokenize(src.Title + " " + src.Abstract),
		})
	}

	// Rank once over the full candidate set to find the embedding fan-out
	// window, then re-rank with embeddings layered in for the top window
	// only (spec.md §4.8 step 4: "Top-K ... are also embedded").
	preRank := RankSources(s.Cfg, plan, docs, map[string]float64{}, time.Now())
	sort.SliceStable(preRank, func(i, j int) bool { return preRank[i].BM25 > preRank[j].BM25 })

	topK := s.Cfg.RerankTopK
	if topK > len(preRank) {
		topK = len(preRank)
	}
	embedSim := s.embedTopK(ctx, tx, sc, preRank[:topK], bySourceKey)
	s.emit(ctx, sc, "retrieve.rerank.completed", map[string]any{"embedded_count": len(embedSim)})

	ranked := RankSources(s.Cfg, plan, docs, embedSim, time.Now())
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	target := s.Cfg.MaxSources
	selected := SelectDiverse(s.Cfg, ranked, target)

	intentCounts := map[string]int{}
	for i, rs := range selected {
		src := bySourceKey[rs.CanonicalKey]
		intentCounts[rs.BestIntent]++

		metadata, err := json.Marshal(map[string]string{"abstract": src.Abstract})
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("marshal source metadata %d: %w", i, err)
		}
		persisted, err := s.Sources.UpsertSource(ctx, tx, sc.TenantID, model.Source{
			CanonicalID:  rs.CanonicalKey,
			SourceType:   "academic",
			Title:        src.Title,
			Authors:      src.Authors,
			Year:         src.Year,
			Venue:        src.Venue,
			DOI:          src.CanonicalID.DOI,
			ArXivID:      src.CanonicalID.ArXivID,
			URL:          src.URL,
			Origin:       src.Connector,
			CitedByCount: src.CitedByCount,
			MetadataJSON: metadata,
		})
		if err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("persist source %d: %w", i, err)
		}
		if err := s.Sources.UpsertRunSource(ctx, tx, sc.TenantID, sc.RunID, persisted.ID, rs.Score, src.Connector); err != nil {
			return pipeline.StageOutcome{}, fmt.Errorf("link run source %d: %w", i, err)
		}
	}

	return pipeline.StageOutcome{Summary: map[string]any{
		"selected_sources": len(selected),
		"intent_counts":     intentCounts,
		"llm_used":          llmUsed,
	}}, nil
}

// fanOut runs every planned query against every configured connector,
// swallowing per-connector errors (spec.md §10's "transient connector
// errors are swallowed per query") and tallying hits by intent for the
// checkpoint summary.
func (s *Stage) fanOut(ctx context.Context, sc pipeline.StageContext, plan []PlannedQuery) ([]connectors.RetrievedSource, map[string]int) {
	var all []connectors.RetrievedSource
	intentCounts := map[string]int{}
	for _, q := range plan {
		for _, conn := range s.Connectors {
			results, err := conn.Search(ctx, connectors.SearchParams{Query: q.Query, MaxResults: 20})
			if err != nil {
				s.emit(ctx, sc, "retrieve.connector_error", map[string]any{
					"connector": conn.Name(), "query": q.Query, "error": err.Error(),
				})
				continue
			}
			for i := range results {
				results[i].Connector = conn.Name()
			}
			all = append(all, results...)
			intentCounts[q.Intent] += len(results)
		}
	}
	return all, intentCounts
}

// embedTopK embeds every candidate title+abstract among the top-K BM25
// scorers, checking the SourceEmbedding cache first (spec.md §4.8 step 4:
// "check the SourceEmbedding cache; miss -> batch-embed; hit requires
// text_hash match"), then returns cosine similarity between each doc and
// the run's query. Returns an empty map (no rerank contribution) if no
// Embedder is configured, matching the embedding client's "external
// collaborator, may be absent" status (spec.md §1).
func (s *Stage) embedTopK(ctx context.Context, tx store.DBTX, sc pipeline.StageContext, topK []RankedSource, bySourceKey map[string]connectors.RetrievedSource) map[string]float64 {
	if s.Embedder == nil || len(topK) == 0 {
		return map[string]float64{}
	}

	modelName := s.Embedder.ModelName()
	type pending struct {
		idx  int
		text string
		hash string
	}
	vectors := make([][]float32, len(topK))
	var miss []pending
	cacheHits, cacheMisses := 0, 0

	for i, rs := range topK {
		src := bySourceKey[rs.CanonicalKey]
		text := src.Title + "\n\n" + src.Abstract
		hash := textHash(text)
		cached, err := s.Sources.GetSourceEmbedding(ctx, tx, sc.TenantID, rs.CanonicalKey, modelName)
		if err == nil && cached.TextHash == hash {
			vectors[i] = cached.Embedding
			cacheHits++
			continue
		}
		cacheMisses++
		miss = append(miss, pending{idx: i, text: text, hash: hash})
	}

	if len(miss) > 0 {
		texts := make([]string, len(miss))
		for i, m := range miss {
			texts[i] = m.text
		}
		embedded, err := s.Embedder.EmbedTexts(ctx, texts)
		if err != nil || len(embedded) != len(texts) {
			s.emit(ctx, sc, "retrieve.embed_error", map[string]any{"error": errString(err)})
			return map[string]float64{}
		}
		for i, m := range miss {
			vectors[m.idx] = embedded[i]
			if err := s.Sources.UpsertSourceEmbedding(ctx, tx, sc.TenantID, topK[m.idx].CanonicalKey, modelName, embedded[i], m.hash); err != nil {
				s.emit(ctx, sc, "retrieve.embed_cache_error", map[string]any{"error": err.Error()})
			}
		}
	}
	s.emit(ctx, sc, "retrieve.embed_cache", map[string]any{"hits": cacheHits, "misses": cacheMisses})

	queryVecs, err := s.Embedder.EmbedTexts(ctx, []string{sc.Run.Question})
	if err != nil || len(queryVecs) == 0 {
		return map[string]float64{}
	}
	queryVec := queryVecs[0]

	out := make(map[string]float64, len(topK))
	for i, rs := range topK {
		out[rs.CanonicalKey] = cosineSimilarity(queryVec, vectors[i])
	}
	return out
}

func textHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (s *Stage) emit(ctx context.Context, sc pipeline.StageContext, eventType string, payload map[string]any) {
	stage := model.StageRetrieve
	if _, err := s.Sink.Emit(ctx, sc.TenantID, sc.RunID, eventType, model.LevelInfo, eventType, &stage, payload); err != nil {
		_ = err
	}
}

func canonicalKey(c connectors.CanonicalIdentifier) string {
	return model.CanonicalID{DOI: c.DOI, ArXivID: c.ArXivID, OpenAlexID: c.OpenAlexID, URL: c.URL}.String()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var _ pipeline.Stage = (*Stage)(nil)
