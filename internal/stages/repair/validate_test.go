package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSectionSummary(t *testing.T) {
	t.Run("accepts a short citation-free summary", func(t *testing.T) {
		assert.NoError(t, validateSectionSummary("This section covers the basics. It was revised for accuracy."))
	})

	t.Run("rejects a summary containing a citation", func(t *testing.T) {
		assert.Error(t, validateSectionSummary("Supported by evidence. [CITE:aaaaaaaa]"))
	})

	t.Run("rejects an empty summary", func(t *testing.T) {
		assert.Error(t, validateSectionSummary(""))
	})

	t.Run("rejects more than three sentences", func(t *testing.T) {
		assert.Error(t, validateSectionSummary("One. Two. Three. Four."))
	})
}

func TestValidateSectionLength(t *testing.T) {
	t.Run("passes at or above the minimum", func(t *testing.T) {
		assert.NoError(t, validateSectionLength("one two three four five", 5))
	})

	t.Run("fails below the minimum", func(t *testing.T) {
		assert.Error(t, validateSectionLength("one two three", 5))
	})
}

func TestValidateScope(t *testing.T) {
	original := "First sentence. Second sentence. Third sentence."

	t.Run("accepts an edit confined to the flagged sentence", func(t *testing.T) {
		revised := "First sentence. Revised second sentence. Third sentence."
		assert.NoError(t, validateScope(original, revised, map[int]bool{1: true}))
	})

	t.Run("rejects an edit outside the flagged sentence", func(t *testing.T) {
		revised := "Rewritten first. Revised second sentence. Third sentence."
		assert.Error(t, validateScope(original, revised, map[int]bool{1: true}))
	})

	t.Run("rejects a sentence count change", func(t *testing.T) {
		revised := "First sentence. Second sentence. Third sentence. Extra sentence."
		assert.Error(t, validateScope(original, revised, map[int]bool{1: true}))
	})
}

func TestValidateNextSectionPatch(t *testing.T) {
	original := "Opener one. Opener two. Untouched third. Untouched fourth."

	t.Run("accepts a patch confined to the first two sentences", func(t *testing.T) {
		revised := "New opener one. New opener two. Untouched third. Untouched fourth."
		assert.NoError(t, validateNextSectionPatch(original, revised))
	})

	t.Run("rejects a patch that touches sentence index 2 or later", func(t *testing.T) {
		revised := "New opener one. New opener two. Changed third. Untouched fourth."
		assert.Error(t, validateNextSectionPatch(original, revised))
	})
}
