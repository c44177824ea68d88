package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/researchops/runcore/internal/model"
)

// SourceRepo persists sources, their per-run selection, ingested snippets,
// and the embedding caches the Retrieve/Evidence-Pack stages rerank
// against. Grounded on retriever.py's _upsert_source/_upsert_run_source and
// evidence_packer.py's snippet handling.
type SourceRepo struct{}

func NewSourceRepo() *SourceRepo { return &SourceRepo{} }

// UpsertSource inserts a source or, if its canonical_id is already known
// for the tenant, updates the mutable fields (cited_by_count in particular
// changes over time) and returns the existing id.
func (r *SourceRepo) UpsertSource(ctx context.Context, db DBTX, tenantID model.TenantID, s model.Source) (model.Source, error) {
	authors, err := json.Marshal(s.Authors)
	if err != nil {
		return model.Source{}, fmt.Errorf("marshal authors: %w", err)
	}
	metadata := s.MetadataJSON
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}

	var out model.Source
	var outAuthors json.RawMessage
	err = db.QueryRow(ctx, `
		INSERT INTO sources (
			tenant_id, id, canonical_id, source_type, title, authors, year, venue,
			doi, arxiv_id, url, origin, cited_by_count, metadata_json
		) VALUES ($1, gen_random_uuid(), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tenant_id, canonical_id) DO UPDATE SET
			title = EXCLUDED.title, authors = EXCLUDED.authors, year = EXCLUDED.year,
			venue = EXCLUDED.venue, cited_by_count = EXCLUDED.cited_by_count,
			metadata_json = EXCLUDED.metadata_json, updated_at = now()
		RETURNING tenant_id, id, canonical_id, source_type, title, authors, year, venue,
			doi, arxiv_id, url, origin, cited_by_count, metadata_json, created_at, updated_at
	`, tenantID, s.CanonicalID, s.SourceType, s.Title, authors, s.Year, s.Venue,
		s.DOI, s.ArXivID, s.URL, s.Origin, s.CitedByCount, metadata).Scan(
		&out.TenantID, &out.ID, &out.CanonicalID, &out.SourceType, &out.Title, &outAuthors, &out.Year,
		&out.Venue, &out.DOI, &out.ArXivID, &out.URL, &out.Origin, &out.CitedByCount, &out.MetadataJSON,
		&out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return model.Source{}, fmt.Errorf("upsert source: %w", err)
	}
	if err := json.Unmarshal(outAuthors, &out.Authors); err != nil {
		return model.Source{}, fmt.Errorf("unmarshal authors: %w", err)
	}
	return out, nil
}

// GetSource loads a source by id, used by the Evidence-Pack stage's
// abstract-fallback path when a source has no ingested snippets.
func (r *SourceRepo) GetSource(ctx context.Context, db DBTX, tenantID model.TenantID, sourceID model.SourceID) (model.Source, error) {
	var out model.Source
	var outAuthors json.RawMessage
	err := db.QueryRow(ctx, `
		SELECT tenant_id, id, canonical_id, source_type, title, authors, year, venue,
			doi, arxiv_id, url, origin, cited_by_count, metadata_json, created_at, updated_at
		FROM sources WHERE tenant_id = $1 AND id = $2
	`, tenantID, sourceID).Scan(
		&out.TenantID, &out.ID, &out.CanonicalID, &out.SourceType, &out.Title, &outAuthors, &out.Year,
		&out.Venue, &out.DOI, &out.ArXivID, &out.URL, &out.Origin, &out.CitedByCount, &out.MetadataJSON,
		&out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return model.Source{}, fmt.Errorf("get source: %w", err)
	}
	if err := json.Unmarshal(outAuthors, &out.Authors); err != nil {
		return model.Source{}, fmt.Errorf("unmarshal authors: %w", err)
	}
	return out, nil
}

// UpsertRunSource records that sourceID was selected into runID's working
// set at the given rerank score.
func (r *SourceRepo) UpsertRunSource(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID, sourceID model.SourceID, score float64, origin string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO run_sources (tenant_id, run_id, source_id, score, origin)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, run_id, source_id) DO UPDATE SET score = EXCLUDED.score, origin = EXCLUDED.origin
	`, tenantID, runID, sourceID, score, origin)
	if err != nil {
		return fmt.Errorf("upsert run source: %w", err)
	}
	return nil
}

// ListRunSources returns a run's selected sources ordered by score
// descending (the Retrieve stage's diversity-capped rerank order).
func (r *SourceRepo) ListRunSources(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID) ([]model.RunSource, error) {
	rows, err := db.Query(ctx, `
		SELECT tenant_id, run_id, source_id, score, origin
		FROM run_sources WHERE tenant_id = $1 AND run_id = $2 ORDER BY score DESC
	`, tenantID, runID)
	if err != nil {
		return nil, fmt.Errorf("list run sources: %w", err)
	}
	defer rows.Close()

	var out []model.RunSource
	for rows.Next() {
		var rs model.RunSource
		if err := rows.Scan(&rs.TenantID, &rs.RunID, &rs.SourceID, &rs.Score, &rs.Origin); err != nil {
			return nil, fmt.Errorf("scan run source: %w", err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// InsertSnippet adds one ingested (or synthesized) snippet for a source.
func (r *SourceRepo) InsertSnippet(ctx context.Context, db DBTX, tenantID model.TenantID, sourceID model.SourceID, text string, charStart, charEnd int) (model.Snippet, error) {
	var sn model.Snippet
	err := db.QueryRow(ctx, `
		INSERT INTO snippets (tenant_id, id, source_id, text, char_start, char_end)
		VALUES ($1, gen_random_uuid(), $2, $3, $4, $5)
		RETURNING tenant_id, id, source_id, text, char_start, char_end
	`, tenantID, sourceID, text, charStart, charEnd).Scan(
		&sn.TenantID, &sn.ID, &sn.SourceID, &sn.Text, &sn.CharStart, &sn.CharEnd,
	)
	if err != nil {
		return model.Snippet{}, fmt.Errorf("insert snippet: %w", err)
	}
	return sn, nil
}

// ListSnippetsForSource returns every snippet ingested for a source.
func (r *SourceRepo) ListSnippetsForSource(ctx context.Context, db DBTX, tenantID model.TenantID, sourceID model.SourceID) ([]model.Snippet, error) {
	rows, err := db.Query(ctx, `
		SELECT tenant_id, id, source_id, text, char_start, char_end
		FROM snippets WHERE tenant_id = $1 AND source_id = $2
	`, tenantID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	defer rows.Close()

	var out []model.Snippet
	for rows.Next() {
		var sn model.Snippet
		if err := rows.Scan(&sn.TenantID, &sn.ID, &sn.SourceID, &sn.Text, &sn.CharStart, &sn.CharEnd); err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

// GetSnippetsByIDs loads snippet text for a section's evidence pack, used
// by the Writer/Evaluator/Repair stages to build citation prompts.
func (r *SourceRepo) GetSnippetsByIDs(ctx context.Context, db DBTX, tenantID model.TenantID, ids []model.SnippetID) ([]model.Snippet, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.Query(ctx, `
		SELECT tenant_id, id, source_id, text, char_start, char_end
		FROM snippets WHERE tenant_id = $1 AND id = ANY($2)
	`, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("get snippets by ids: %w", err)
	}
	defer rows.Close()

	var out []model.Snippet
	for rows.Next() {
		var sn model.Snippet
		if err := rows.Scan(&sn.TenantID, &sn.ID, &sn.SourceID, &sn.Text, &sn.CharStart, &sn.CharEnd); err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

// UpsertSnippetEmbedding caches a snippet's embedding under a named model.
func (r *SourceRepo) UpsertSnippetEmbedding(ctx context.Context, db DBTX, tenantID model.TenantID, snippetID model.SnippetID, embeddingModel string, embedding []float32) error {
	_, err := db.Exec(ctx, `
		INSERT INTO snippet_embeddings (tenant_id, snippet_id, embedding_model, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, snippet_id, embedding_model) DO UPDATE SET embedding = EXCLUDED.embedding
	`, tenantID, snippetID, embeddingModel, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("upsert snippet embedding: %w", err)
	}
	return nil
}

// SearchSnippetsByCosine returns the k nearest snippets to queryEmbedding
// among the given source ids, ordered by cosine distance ascending (so
// index 0 is most similar). Grounds evidence_packer.py's per-section vector
// search.
func (r *SourceRepo) SearchSnippetsByCosine(ctx context.Context, db DBTX, tenantID model.TenantID, embeddingModel string, sourceIDs []model.SourceID, queryEmbedding []float32, k int) ([]model.Snippet, []float64, error) {
	rows, err := db.Query(ctx, `
		SELECT s.tenant_id, s.id, s.source_id, s.text, s.char_start, s.char_end,
			1 - (e.embedding <=> $4) AS similarity
		FROM snippets s
		JOIN snippet_embeddings e
			ON e.tenant_id = s.tenant_id AND e.snippet_id = s.id AND e.embedding_model = $3
		WHERE s.tenant_id = $1 AND s.source_id = ANY($2)
		ORDER BY e.embedding <=> $4 ASC
		LIMIT $5
	`, tenantID, sourceIDs, embeddingModel, pgvector.NewVector(queryEmbedding), k)
	if err != nil {
		return nil, nil, fmt.Errorf("search snippets by cosine: %w", err)
	}
	defer rows.Close()

	var snippets []model.Snippet
	var similarities []float64
	for rows.Next() {
		var sn model.Snippet
		var sim float64
		if err := rows.Scan(&sn.TenantID, &sn.ID, &sn.SourceID, &sn.Text, &sn.CharStart, &sn.CharEnd, &sim); err != nil {
			return nil, nil, fmt.Errorf("scan snippet search row: %w", err)
		}
		snippets = append(snippets, sn)
		similarities = append(similarities, sim)
	}
	return snippets, similarities, rows.Err()
}

// GetSourceEmbedding returns the cached rerank-time embedding for a
// canonical_id, or an error if absent or stale (caller compares TextHash).
func (r *SourceRepo) GetSourceEmbedding(ctx context.Context, db DBTX, tenantID model.TenantID, canonicalID, embeddingModel string) (model.SourceEmbedding, error) {
	var se model.SourceEmbedding
	var vec pgvector.Vector
	err := db.QueryRow(ctx, `
		SELECT tenant_id, canonical_id, embedding_model, embedding, text_hash, created_at, updated_at
		FROM source_embeddings WHERE tenant_id = $1 AND canonical_id = $2 AND embedding_model = $3
	`, tenantID, canonicalID, embeddingModel).Scan(
		&se.TenantID, &se.CanonicalID, &se.EmbeddingModel, &vec, &se.TextHash, &se.CreatedAt, &se.UpdatedAt,
	)
	if err != nil {
		return model.SourceEmbedding{}, fmt.Errorf("get source embedding: %w", err)
	}
	se.Embedding = vec.Slice()
	return se, nil
}

// UpsertSourceEmbedding refreshes the rerank embedding cache when the
// embedded text has changed (spec.md §3's SourceEmbedding refresh rule).
func (r *SourceRepo) UpsertSourceEmbedding(ctx context.Context, db DBTX, tenantID model.TenantID, canonicalID, embeddingModel string, embedding []float32, textHash string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO source_embeddings (tenant_id, canonical_id, embedding_model, embedding, text_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, canonical_id, embedding_model)
		DO UPDATE SET embedding = EXCLUDED.embedding, text_hash = EXCLUDED.text_hash, updated_at = now()
	`, tenantID, canonicalID, embeddingModel, pgvector.NewVector(embedding), textHash)
	if err != nil {
		return fmt.Errorf("upsert source embedding: %w", err)
	}
	return nil
}
