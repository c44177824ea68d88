// Package writer implements the Writer stage: per-section drafting with
// citation-token resolution and a strict sentence-end placement validator
// (spec.md §4.11), grounded on original_source/.../nodes/writer.py.
package writer

import (
	"os"
	"strconv"
)

type Config struct {
	MinWords            int
	SnippetTextMaxChars int
}

func DefaultConfig() Config {
	return Config{
		MinWords:            envInt("DRAFT_SECTION_MIN_WORDS", 50),
		SnippetTextMaxChars: envInt("DRAFT_SNIPPET_TEXT_MAX_CHARS", 400),
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
