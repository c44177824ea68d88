package evidencepack

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/researchops/runcore/internal/model"
)

func snippet(id, sourceID string) model.Snippet {
	return model.Snippet{
		ID:       model.SnippetID(uuid.MustParse(padUUID(id))),
		SourceID: model.SourceID(uuid.MustParse(padUUID(sourceID))),
	}
}

func padUUID(seed string) string {
	return seed + "00000000-0000-0000-0000-000000000000"[len(seed):]
}

func TestDedupeResults(t *testing.T) {
	t.Run("keeps the higher similarity hit", func(t *testing.T) {
		sn := snippet("1", "a")
		results := []scoredSnippet{
			{Snippet: sn, Similarity: 0.4},
			{Snippet: sn, Similarity: 0.7},
		}
		out := dedupeResults(results)
		assert.Len(t, out, 1)
		assert.Equal(t, 0.7, out[0].Similarity)
	})
}

func TestSelectDiverseSnippets(t *testing.T) {
	t.Run("caps per source and fills from leftovers", func(t *testing.T) {
		results := []scoredSnippet{
			{Snippet: snippet("1", "a"), Similarity: 0.9},
			{Snippet: snippet("2", "a"), Similarity: 0.8},
			{Snippet: snippet("3", "a"), Similarity: 0.7},
			{Snippet: snippet("4", "b"), Similarity: 0.6},
		}
		selected := selectDiverseSnippets(results, 3, 1)
		assert.Len(t, selected, 3)
		bySource := map[model.SourceID]int{}
		for _, s := range selected {
			bySource[s.Snippet.SourceID]++
		}
		assert.LessOrEqual(t, bySource[results[0].Snippet.SourceID], 2) // cap spills once leftovers are tapped
	})

	t.Run("zero cap disables the per-source limit", func(t *testing.T) {
		results := []scoredSnippet{
			{Snippet: snippet("1", "a"), Similarity: 0.9},
			{Snippet: snippet("2", "a"), Similarity: 0.8},
		}
		selected := selectDiverseSnippets(results, 5, 0)
		assert.Len(t, selected, 2)
	})
}
