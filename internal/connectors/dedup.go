package connectors

import "github.com/researchops/runcore/internal/model"

// DeduplicationStats reports how many raw connector hits collapsed into how
// many unique sources, grounded on researchops_connectors.dedup.DeduplicationStats.
type DeduplicationStats struct {
	TotalInput  int
	UniqueCount int
	DuplicatesRemoved int
}

func canonicalKey(id CanonicalIdentifier) string {
	return model.CanonicalID{
		DOI:        id.DOI,
		ArXivID:    id.ArXivID,
		OpenAlexID: id.OpenAlexID,
		URL:        id.URL,
	}.String()
}

// Deduplicate collapses sources sharing a canonical identifier, preferring
// the hit from preferConnector (if any of the duplicates came from it) so
// that a higher-trust catalog's metadata wins ties — grounded on
// researchops_connectors.dedup.deduplicate_sources(prefer_connector=...).
func Deduplicate(sources []RetrievedSource, preferConnector string) ([]RetrievedSource, DeduplicationStats) {
	byKey := make(map[string]RetrievedSource)
	order := make([]string, 0, len(sources))

	for _, s := range sources {
		key := canonicalKey(s.CanonicalID)
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = s
			order = append(order, key)
			continue
		}
		if preferConnector != "" && s.Connector == preferConnector && existing.Connector != preferConnector {
			byKey[key] = s
		}
	}

	out := make([]RetrievedSource, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}

	stats := DeduplicationStats{
		TotalInput:        len(sources),
		UniqueCount:        len(out),
		DuplicatesRemoved: len(sources) - len(out),
	}
	return out, stats
}
