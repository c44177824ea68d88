package model

import (
	"encoding/json"
	"time"
)

// CanonicalID is the identity tuple a source is deduplicated on, with
// priority DOI > arXiv > OpenAlex > URL (SPEC_FULL.md Glossary).
type CanonicalID struct {
	DOI        string `json:"doi,omitempty"`
	ArXivID    string `json:"arxiv_id,omitempty"`
	OpenAlexID string `json:"openalex_id,omitempty"`
	URL        string `json:"url,omitempty"`
}

// String renders the highest-priority non-empty identifier, used as the
// canonical_id storage key and embedding-cache key.
func (c CanonicalID) String() string {
	switch {
	case c.DOI != "":
		return "doi:" + c.DOI
	case c.ArXivID != "":
		return "arxiv:" + c.ArXivID
	case c.OpenAlexID != "":
		return "openalex:" + c.OpenAlexID
	default:
		return "url:" + c.URL
	}
}

// Source is a deduplicated, tenant-scoped academic source record populated
// by the Retrieve stage from connector results.
type Source struct {
	TenantID      TenantID
	ID            SourceID
	CanonicalID   string
	SourceType    string
	Title         string
	Authors       []string
	Year          *int
	Venue         string
	DOI           string
	ArXivID       string
	URL           string
	Origin        string
	CitedByCount  *int
	MetadataJSON  json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RunSource links a Source into a specific Run's selected set, carrying the
// rerank score it was chosen with.
type RunSource struct {
	TenantID TenantID
	RunID    RunID
	SourceID SourceID
	Score    float64
	Origin   string
}

// Snippet is one chunk of ingested source text eligible for citation.
// Sourced either from real ingestion (out of scope — see SourceIngester) or
// synthesized from a title+abstract fallback when no chunked snippets
// exist yet (SPEC_FULL.md §12.10 / spec.md §4.9 final paragraph).
type Snippet struct {
	TenantID  TenantID
	ID        SnippetID
	SourceID  SourceID
	Text      string
	CharStart int
	CharEnd   int
}

// SnippetEmbedding is a cached embedding vector for one Snippet under a
// named embedding model.
type SnippetEmbedding struct {
	TenantID       TenantID
	SnippetID      SnippetID
	EmbeddingModel string
	Embedding      []float32
}

// SourceEmbedding is the Retrieve stage's rerank-time embedding cache,
// keyed by (tenant, canonical_id, model) and refreshed only when the
// embedded text changes (TextHash mismatch).
type SourceEmbedding struct {
	TenantID       TenantID
	CanonicalID    string
	EmbeddingModel string
	Embedding      []float32
	TextHash       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
