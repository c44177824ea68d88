// Package evidencepack implements the Evidence-Pack stage: per-section
// embedding search with threshold relaxation and diversity-capped snippet
// selection (spec.md §4.9), grounded on
// original_source/.../nodes/evidence_packer.py.
package evidencepack

import (
	"os"
	"strconv"
)

// Config mirrors evidence_packer.py's env-tunable defaults exactly.
type Config struct {
	SearchLimit    int
	MinSimilarity  float64
	MinRequired    int
	SnippetMin     int
	SnippetMax     int
	PerSourceCap   int
	EmbeddingModel string
}

func DefaultConfig() Config {
	return Config{
		SearchLimit:    envInt("EVIDENCE_SEARCH_LIMIT", 60),
		MinSimilarity:  envFloat("EVIDENCE_MIN_SIMILARITY", 0.35),
		MinRequired:    envInt("EVIDENCE_MIN_REQUIRED", 5),
		SnippetMin:     envInt("EVIDENCE_SNIPPET_MIN", 8),
		SnippetMax:     envInt("EVIDENCE_SNIPPET_MAX", 20),
		PerSourceCap:   envInt("EVIDENCE_PER_SOURCE_CAP", 3),
		EmbeddingModel: envString("EVIDENCE_EMBEDDING_MODEL", "text-embedding-3-small"),
	}
}

func envInt(name string, def int) int {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return def
}

func envFloat(name string, def float64) float64 {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return def
}

func envString(name, def string) string {
	if raw := os.Getenv(name); raw != "" {
		return raw
	}
	return def
}
