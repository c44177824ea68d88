package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMechanicalDropSentences(t *testing.T) {
	text := "First sentence. Second sentence. Third sentence."

	t.Run("drops only flagged indices", func(t *testing.T) {
		out := mechanicalDropSentences(text, map[int]bool{1: true})
		assert.Equal(t, "First sentence. Third sentence.", out)
	})

	t.Run("keeps everything when nothing is flagged", func(t *testing.T) {
		out := mechanicalDropSentences(text, map[int]bool{})
		assert.Equal(t, text, out)
	})

	t.Run("drops every sentence when all flagged", func(t *testing.T) {
		out := mechanicalDropSentences(text, map[int]bool{0: true, 1: true, 2: true})
		assert.Equal(t, "", out)
	})
}

func TestMechanicalSummary(t *testing.T) {
	t.Run("takes the first two surviving sentences", func(t *testing.T) {
		out := mechanicalSummary("First one. Second one. Third one.")
		assert.Equal(t, "First one. Second one.", out)
	})

	t.Run("falls back when nothing survived", func(t *testing.T) {
		out := mechanicalSummary("")
		assert.Equal(t, "This section was revised during repair.", out)
	})

	t.Run("strips citation tokens before summarizing", func(t *testing.T) {
		out := mechanicalSummary("Evidence shows this. [CITE:aaaaaaaa]")
		assert.NotContains(t, out, "CITE")
	})
}

func TestMechanicalNextSectionPatch(t *testing.T) {
	t.Run("rewrites the first two sentences only", func(t *testing.T) {
		next := "Original opener. Original second. Original third, untouched."
		out := mechanicalNextSectionPatch(next)
		assert.Contains(t, out, "Building on the preceding discussion")
		assert.Contains(t, out, "Original third, untouched.")
		assert.NotContains(t, out, "Original opener.")
	})

	t.Run("single-sentence section becomes just the bridge", func(t *testing.T) {
		out := mechanicalNextSectionPatch("Only sentence here.")
		assert.Equal(t, "Building on the preceding discussion, this section turns to the next set of considerations.", out)
	})

	t.Run("empty text is returned unchanged", func(t *testing.T) {
		out := mechanicalNextSectionPatch("")
		assert.Equal(t, "", out)
	})
}
