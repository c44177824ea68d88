package repair

import (
	"fmt"
	"strings"

	"github.com/researchops/runcore/internal/stages/textutil"
)

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

func validateSectionLength(text string, minWords int) error {
	if n := textutil.WordCount(text); n < minWords {
		return fmt.Errorf("section text has %d words, below minimum %d", n, minWords)
	}
	return nil
}

// validateScope enforces spec.md §4.13 point 4: every sentence outside
// issueIndices must remain byte-identical between original and revised,
// and the sentence counts must match (Repair edits sentences in place; it
// never inserts or removes whole sentences), matching
// repair_agent.py's _validate_repair_scope.
func validateScope(original, revised string, issueIndices map[int]bool) error {
	origSentences := textutil.SplitSentences(original)
	revSentences := textutil.SplitSentences(revised)
	if len(origSentences) != len(revSentences) {
		return fmt.Errorf("repair changed sentence count: %d -> %d", len(origSentences), len(revSentences))
	}
	for i := range origSentences {
		if issueIndices[i] {
			continue
		}
		if origSentences[i] != revSentences[i] {
			return fmt.Errorf("sentence %d outside the reported issues was modified", i)
		}
	}
	return nil
}

// validateNextSectionPatch enforces spec.md §4.13 point 4's second clause:
// the next section's sentences at index >= 2 must be byte-identical to the
// original, matching repair_agent.py's _validate_next_section_patch.
func validateNextSectionPatch(original, revised string) error {
	origSentences := textutil.SplitSentences(original)
	revSentences := textutil.SplitSentences(revised)
	if len(origSentences) != len(revSentences) {
		return fmt.Errorf("continuity patch changed sentence count: %d -> %d", len(origSentences), len(revSentences))
	}
	for i := 2; i < len(origSentences); i++ {
		if origSentences[i] != revSentences[i] {
			return fmt.Errorf("continuity patch touched sentence %d beyond the allowed first two", i)
		}
	}
	return nil
}
