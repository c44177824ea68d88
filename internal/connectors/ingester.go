package connectors

import "context"

// IngestResult is the outcome of ingesting one newly selected source,
// mirroring spec.md §6.3's "returns {source_id, snapshot_id,
// snippet_count}".
type IngestResult struct {
	SourceID     string
	SnapshotID   string
	SnippetCount int
}

// SourceIngester sanitizes, chunks, embeds and stores a new source's full
// text. Out of scope to implement concretely (spec.md §1). No stage in
// this module calls it: the Retrieve stage stores selected sources without
// ingesting them, and Evidence-Pack synthesizes an abstract-only snippet
// for any source that has no snippets yet.
type SourceIngester interface {
	IngestSource(ctx context.Context, canonicalURL, title, abstract string) (IngestResult, error)
}
