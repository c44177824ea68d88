package llm

import "context"

// Embedder is the shared embedding client boundary used by Retrieve's
// rerank step and Evidence-Pack's per-section vector search (spec.md §6.3:
// "embed_texts(list<string>) -> list<vector<float>>; exposes model_name and
// dimensions"). Kept separate from Client since a deployment may use a
// different provider/model for embeddings than for generation.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimensions() int
}
