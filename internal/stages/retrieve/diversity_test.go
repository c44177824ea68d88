package retrieve

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectDiverse(t *testing.T) {
	cfg := Config{MinSources: 4, MaxSources: 6}

	t.Run("caps each intent's share", func(t *testing.T) {
		var ranked []RankedSource
		for i := 0; i < 10; i++ {
			ranked = append(ranked, RankedSource{
				CanonicalKey: "background-" + strconv.Itoa(i),
				Score:        1.0 - float64(i)*0.01,
				BestIntent:   "background",
			})
		}
		selected := SelectDiverse(cfg, ranked, 6)
		assert.LessOrEqual(t, len(selected), 6)
		// with 6 allowed intents and a target of 6, the per-intent cap is 1,
		// so a single-intent candidate pool tops up from leftovers only
		// after exhausting the cap once per intent bucket.
		assert.GreaterOrEqual(t, len(selected), cfg.MinSources)
	})

	t.Run("tops up to MinSources when short", func(t *testing.T) {
		ranked := []RankedSource{
			{CanonicalKey: "a", Score: 0.9, BestIntent: "background"},
			{CanonicalKey: "b", Score: 0.8, BestIntent: "methodology"},
		}
		selected := SelectDiverse(cfg, ranked, 6)
		assert.Len(t, selected, 2) // can't top up past what's available
	})
}
