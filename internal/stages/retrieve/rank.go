package retrieve

import (
	"math"
	"regexp"
	"strings"
	"time"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// bm25Tokenize lowercases and keeps alnum runs longer than 2 chars,
// matching retriever.py's _bm25_tokenize.
func bm25Tokenize(text string) []string {
	var out []string
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if len(tok) > 2 {
			out = append(out, tok)
		}
	}
	return out
}

// candidateDoc is one deduplicated source being scored against a query
// plan, carrying everything the ranking formula needs.
type candidateDoc struct {
	CanonicalKey string
	Title        string
	Abstract     string
	Year         *int
	CitedByCount *int
	tokens       []string
}

// bm25Score scores one document's tokens against a query's tokens over the
// given corpus document frequencies, using Okapi BM25 with k1=1.5, b=0.75 —
// grounded on retriever.py's _bm25_score.
func bm25Score(queryTokens, docTokens []string, avgDocLen float64, docFreq map[string]int, totalDocs int) float64 {
	if len(docTokens) == 0 || totalDocs == 0 {
		return 0
	}
	termFreq := make(map[string]int, len(docTokens))
	for _, t := range docTokens {
		termFreq[t]++
	}
	docLen := float64(len(docTokens))

	var score float64
	seen := make(map[string]bool, len(queryTokens))
	for _, qt := range queryTokens {
		if seen[qt] {
			continue
		}
		seen[qt] = true
		tf := float64(termFreq[qt])
		if tf == 0 {
			continue
		}
		df := docFreq[qt]
		idf := math.Log(1 + (float64(totalDocs)-float64(df)+0.5)/(float64(df)+0.5))
		numerator := tf * (bm25K1 + 1)
		denominator := tf + bm25K1*(1-bm25B+bm25B*(docLen/avgDocLen))
		score += idf * (numerator / denominator)
	}
	return score
}

// cosineSimilarity is the standard cosine similarity of two equal-length
// vectors, matching retriever.py's _cosine_similarity.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// recencyScore decays linearly to 0 over 10 years, matching
// retriever.py's _recency_score.
func recencyScore(year *int, now time.Time) float64 {
	if year == nil {
		return 0
	}
	age := now.Year() - *year
	if age < 0 {
		age = 0
	}
	if age >= 10 {
		return 0
	}
	return 1 - float64(age)/10.0
}

// citationScore maps a citation count through a log curve capped at 1,
// matching retriever.py's _citation_score: min(1, ln(n+1)/10).
func citationScore(citedByCount *int) float64 {
	if citedByCount == nil || *citedByCount <= 0 {
		return 0
	}
	v := math.Log(float64(*citedByCount)+1) / 10.0
	if v > 1 {
		return 1
	}
	return v
}

// normalize01 min-max scales values into [0, 1]; a flat input (max==min)
// scores everything 0, matching retriever.py's normalization guard.
func normalize01(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	span := max - min
	for i, v := range values {
		if span <= 0 {
			out[i] = 0
			continue
		}
		out[i] = (v - min) / span
	}
	return out
}

// RankedSource is a candidate after the full BM25 -> embedding -> recency
// -> citation weighted rerank.
type RankedSource struct {
	CanonicalKey string
	Score        float64
	BM25         float64
	EmbedSim     float64
	BestIntent   string
}

// RankSources runs the full rerank pipeline described in spec.md §4.8 step
// 4: each doc is BM25-scored against every planned query independently,
// keeping its best score and the intent of the query that produced it
// ("track per-doc best BM25 and best intent"); embedding cosine similarity
// is layered in only for docs present in embedSim (the Evidence-Pack-style
// top-K window the caller already restricted); then the weighted sum with
// recency and citation count.
func RankSources(cfg Config, queries []PlannedQuery, docs []candidateDoc, embedSim map[string]float64, now time.Time) []RankedSource {
	docFreq := make(map[string]int)
	var totalLen float64
	for _, d := range docs {
		unique := make(map[string]bool, len(d.tokens))
		for _, t := range d.tokens {
			unique[t] = true
		}
		for t := range unique {
			docFreq[t]++
		}
		totalLen += float64(len(d.tokens))
	}
	avgDocLen := 1.0
	if len(docs) > 0 {
		avgDocLen = totalLen / float64(len(docs))
		if avgDocLen <= 0 {
			avgDocLen = 1
		}
	}

	queryTokenSets := make([][]string, len(queries))
	for i, q := range queries {
		queryTokenSets[i] = bm25Tokenize(q.Query)
	}

	bm25Raw := make([]float64, len(docs))
	bestIntent := make([]string, len(docs))
	recencyRaw := make([]float64, len(docs))
	citationRaw := make([]float64, len(docs))
	embedRaw := make([]float64, len(docs))

	for i, d := range docs {
		best := 0.0
		bestIdx := -1
		for qi, toks := range queryTokenSets {
			s := bm25Score(toks, d.tokens, avgDocLen, docFreq, len(docs))
			if bestIdx == -1 || s > best {
				best = s
				bestIdx = qi
			}
		}
		bm25Raw[i] = best
		if bestIdx >= 0 {
			bestIntent[i] = queries[bestIdx].Intent
		} else {
			bestIntent[i] = "background"
		}
		recencyRaw[i] = recencyScore(d.Year, now)
		citationRaw[i] = citationScore(d.CitedByCount)
		if sim, ok := embedSim[d.CanonicalKey]; ok {
			embedRaw[i] = sim
		}
	}

	bm25Norm := normalize01(bm25Raw)
	recencyNorm := normalize01(recencyRaw)
	citationNorm := normalize01(citationRaw)
	embedNorm := normalizeEmbed(embedRaw, embedSim, docs)

	out := make([]RankedSource, len(docs))
	for i, d := range docs {
		score := cfg.WeightBM25*bm25Norm[i] +
			cfg.WeightEmbed*embedNorm[i] +
			cfg.WeightRecency*recencyNorm[i] +
			cfg.WeightCitation*citationNorm[i]
		out[i] = RankedSource{
			CanonicalKey: d.CanonicalKey,
			Score:        score,
			BM25:         bm25Raw[i],
			EmbedSim:     embedRaw[i],
			BestIntent:   bestIntent[i],
		}
	}
	return out
}

// normalizeEmbed maps cosine similarity in [-1, 1] to [0, 1] via (1+cos)/2
// for docs that were actually embedded, leaving un-embedded docs at 0.
func normalizeEmbed(raw []float64, embedSim map[string]float64, docs []candidateDoc) []float64 {
	out := make([]float64, len(raw))
	for i, d := range docs {
		if sim, ok := embedSim[d.CanonicalKey]; ok {
			out[i] = (1 + sim) / 2
		}
	}
	return out
}
