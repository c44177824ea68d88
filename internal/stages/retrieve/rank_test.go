package retrieve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBM25Score(t *testing.T) {
	t.Run("scores higher for exact term match over no match", func(t *testing.T) {
		docFreq := map[string]int{"transformer": 2, "attention": 1, "biology": 5}
		withTerm := bm25Score([]string{"transformer"}, []string{"transformer", "attention", "model"}, 3, docFreq, 10)
		withoutTerm := bm25Score([]string{"transformer"}, []string{"biology", "cell", "model"}, 3, docFreq, 10)
		assert.Greater(t, withTerm, withoutTerm)
	})

	t.Run("empty doc tokens score zero", func(t *testing.T) {
		assert.Equal(t, 0.0, bm25Score([]string{"a"}, nil, 3, map[string]int{}, 10))
	})
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors score 1", func(t *testing.T) {
		assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	})

	t.Run("mismatched lengths score 0", func(t *testing.T) {
		assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	})
}

func TestRecencyScore(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)

	t.Run("current year scores 1", func(t *testing.T) {
		year := 2026
		assert.InDelta(t, 1.0, recencyScore(&year, now), 1e-9)
	})

	t.Run("10 years old scores 0", func(t *testing.T) {
		year := 2016
		assert.Equal(t, 0.0, recencyScore(&year, now))
	})

	t.Run("nil year scores 0", func(t *testing.T) {
		assert.Equal(t, 0.0, recencyScore(nil, now))
	})
}

func TestRankSourcesTracksBestIntentPerDoc(t *testing.T) {
	cfg := Config{WeightBM25: 1, WeightEmbed: 0, WeightRecency: 0, WeightCitation: 0}
	queries := []PlannedQuery{
		{Intent: "background", Query: "neural networks"},
		{Intent: "methodology", Query: "attention mechanism transformer"},
	}
	docs := []candidateDoc{
		{CanonicalKey: "doc-1", tokens: bm25Tokenize("attention mechanism transformer architecture")},
	}

	ranked := RankSources(cfg, queries, docs, map[string]float64{}, time.Now())

	assert.Len(t, ranked, 1)
	assert.Equal(t, "methodology", ranked[0].BestIntent)
}
