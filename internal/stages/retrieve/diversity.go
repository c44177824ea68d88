package retrieve

import "math"

// SelectDiverse caps each intent's share of the selected set at
// ceil(target/len(AllowedIntents)) and fills any remainder from the
// highest-scoring leftovers, targeting between cfg.MinSources and
// cfg.MaxSources total — grounded on retriever.py's _select_diverse.
func SelectDiverse(cfg Config, ranked []RankedSource, target int) []RankedSource {
	if target < cfg.MinSources {
		target = cfg.MinSources
	}
	if target > cfg.MaxSources {
		target = cfg.MaxSources
	}
	perIntentCap := int(math.Ceil(float64(target) / float64(len(AllowedIntents))))
	if perIntentCap < 1 {
		perIntentCap = 1
	}

	intentCount := make(map[string]int)
	var selected []RankedSource
	var leftover []RankedSource
	selectedKeys := make(map[string]bool)

	for _, r := range ranked {
		if len(selected) >= target {
			break
		}
		primary := r.BestIntent
		if primary == "" {
			primary = "background"
		}
		if intentCount[primary] >= perIntentCap {
			leftover = append(leftover, r)
			continue
		}
		intentCount[primary]++
		selected = append(selected, r)
		selectedKeys[r.CanonicalKey] = true
	}

	for _, r := range leftover {
		if len(selected) >= target {
			break
		}
		if selectedKeys[r.CanonicalKey] {
			continue
		}
		selected = append(selected, r)
		selectedKeys[r.CanonicalKey] = true
	}

	if len(selected) < cfg.MinSources {
		for _, r := range ranked {
			if len(selected) >= cfg.MinSources {
				break
			}
			if selectedKeys[r.CanonicalKey] {
				continue
			}
			selected = append(selected, r)
			selectedKeys[r.CanonicalKey] = true
		}
	}
	return selected
}
