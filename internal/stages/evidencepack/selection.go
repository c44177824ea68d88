package evidencepack

import (
	"sort"

	"github.com/researchops/runcore/internal/model"
)

// scoredSnippet pairs a snippet with its cosine similarity to a section's
// query embedding.
type scoredSnippet struct {
	Snippet    model.Snippet
	Similarity float64
}

// dedupeResults keeps, per snippet id, only the highest-similarity hit —
// a snippet can appear twice when the relaxed re-search overlaps the first
// pass — grounded on evidence_packer.py's _dedupe_results.
func dedupeResults(results []scoredSnippet) []scoredSnippet {
	best := make(map[model.SnippetID]scoredSnippet, len(results))
	order := make([]model.SnippetID, 0, len(results))
	for _, r := range results {
		existing, ok := best[r.Snippet.ID]
		if !ok {
			best[r.Snippet.ID] = r
			order = append(order, r.Snippet.ID)
			continue
		}
		if r.Similarity > existing.Similarity {
			best[r.Snippet.ID] = r
		}
	}
	out := make([]scoredSnippet, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

// selectDiverseSnippets sorts by similarity descending and takes up to
// maxCount, capping how many snippets come from the same source —
// grounded on evidence_packer.py's _select_diverse_snippets.
func selectDiverseSnippets(results []scoredSnippet, maxCount, perSourceCap int) []scoredSnippet {
	sorted := make([]scoredSnippet, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Similarity > sorted[j].Similarity })

	perSource := make(map[model.SourceID]int)
	var selected, leftover []scoredSnippet
	for _, r := range sorted {
		if len(selected) >= maxCount {
			break
		}
		if perSourceCap > 0 && perSource[r.Snippet.SourceID] >= perSourceCap {
			leftover = append(leftover, r)
			continue
		}
		perSource[r.Snippet.SourceID]++
		selected = append(selected, r)
	}
	for _, r := range leftover {
		if len(selected) >= maxCount {
			break
		}
		selected = append(selected, r)
	}
	return selected
}
