package writer

import (
	"fmt"
	"strings"

	"github.com/researchops/runcore/internal/stages/textutil"
)

// validateSectionSummary requires 1-3 citation-free sentences, each ending
// in terminal punctuation, matching writer.py's section_summary contract.
func validateSectionSummary(summary string) error {
	if strings.Contains(summary, "[CITE:") {
		return fmt.Errorf("section_summary must not contain citations")
	}
	sentences := textutil.SplitSentences(summary)
	if len(sentences) == 0 || len(sentences) > 3 {
		return fmt.Errorf("section_summary must be 1-3 sentences, got %d", len(sentences))
	}
	for _, s := range sentences {
		last := s[len(s)-1]
		if last != '.' && last != '!' && last != '?' {
			return fmt.Errorf("section_summary sentence must end in terminal punctuation: %q", s)
		}
	}
	return nil
}

// validateSectionLength enforces the minimum word count, matching
// writer.py's _validate_section_length.
func validateSectionLength(text string, minWords int) error {
	if n := textutil.WordCount(text); n < minWords {
		return fmt.Errorf("section text has %d words, below minimum %d", n, minWords)
	}
	return nil
}
