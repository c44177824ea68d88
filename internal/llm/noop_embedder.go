package llm

import "context"

// noopEmbedder is a zero-vector stand-in used where a deployment has not
// wired a real embedding provider (spec.md §1 keeps the embedding client
// out of scope, specified only as the Embedder interface), grounded on
// internal/connectors.NewNopConnector's same "compiles and runs, contributes
// nothing" idiom for an unwired external collaborator.
type noopEmbedder struct {
	dimensions int
}

// NewNoopEmbedder returns an Embedder that returns an all-zero vector of
// the configured dimensionality for every input text, letting
// vector-search code paths run end to end in local development without a
// live embedding provider.
func NewNoopEmbedder(dimensions int) Embedder {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &noopEmbedder{dimensions: dimensions}
}

func (e *noopEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dimensions)
	}
	return out, nil
}

func (e *noopEmbedder) ModelName() string { return "noop" }

func (e *noopEmbedder) Dimensions() int { return e.dimensions }

var _ Embedder = (*noopEmbedder)(nil)
