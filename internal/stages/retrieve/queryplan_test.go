package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackQueryPlan(t *testing.T) {
	t.Run("parses one query per labeled line", func(t *testing.T) {
		text := "background: history of transformers\nmethodology: attention mechanism design"
		plan := fallbackQueryPlan(text)
		assert.Len(t, plan, 2)
		assert.Equal(t, "background", plan[0].Intent)
		assert.Equal(t, "methodology", plan[1].Intent)
	})

	t.Run("falls back to one query per intent when unlabeled", func(t *testing.T) {
		plan := fallbackQueryPlan("what causes diffusion model artifacts?")
		assert.Len(t, plan, len(AllowedIntents))
		for _, q := range plan {
			assert.Equal(t, "what causes diffusion model artifacts?", q.Query)
		}
	})
}

func TestNormalizeIntent(t *testing.T) {
	t.Run("maps known aliases", func(t *testing.T) {
		assert.Equal(t, "findings", normalizeIntent("results"))
		assert.Equal(t, "background", normalizeIntent("Background"))
	})

	t.Run("falls back to background for unknown intent", func(t *testing.T) {
		assert.Equal(t, "background", normalizeIntent("nonsense"))
	})
}

func TestBuildQueryPlanWithoutClientUsesFallback(t *testing.T) {
	plan, llmUsed, err := BuildQueryPlan(context.Background(), nil, "how do vision transformers scale?")
	assert.NoError(t, err)
	assert.False(t, llmUsed)
	assert.NotEmpty(t, plan)
}
