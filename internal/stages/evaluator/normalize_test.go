package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/researchops/runcore/internal/model"
)

func TestNormalizeIssues(t *testing.T) {
	allowed := map[string]bool{"snippet-1": true}

	t.Run("drops unknown problem codes", func(t *testing.T) {
		out := normalizeIssues([]model.ReviewIssue{
			{Problem: "made_up_problem", SentenceIndex: 0},
			{Problem: "unsupported", SentenceIndex: 1},
		}, allowed)
		assert.Len(t, out, 1)
		assert.Equal(t, "unsupported", out[0].Problem)
	})

	t.Run("coerces negative sentence index to zero", func(t *testing.T) {
		out := normalizeIssues([]model.ReviewIssue{
			{Problem: "overstated", SentenceIndex: -5},
		}, allowed)
		assert.Equal(t, 0, out[0].SentenceIndex)
	})

	t.Run("drops citations outside the evidence pack and notes it", func(t *testing.T) {
		out := normalizeIssues([]model.ReviewIssue{
			{Problem: "invalid_citation", SentenceIndex: 0, Citations: []string{"snippet-1", "snippet-unknown"}},
		}, allowed)
		assert.Equal(t, []string{"snippet-1"}, out[0].Citations)
		assert.Equal(t, "Filtered invalid citations.", out[0].Notes)
	})
}
