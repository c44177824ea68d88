package repair

import (
	"strings"

	"github.com/researchops/runcore/internal/stages/textutil"
)

// mechanicalDropSentences removes the sentences at issueIndices from text
// and rejoins what remains, used when a section has no evidence pack and
// so cannot be safely rewritten by the LLM (spec.md §4.13 point 2: "If the
// section has no evidence pack, drop all issue-indexed sentences
// mechanically"), matching repair_agent.py's _mechanical_sentence_removal.
func mechanicalDropSentences(text string, issueIndices map[int]bool) string {
	sentences := textutil.SplitSentences(text)
	var kept []string
	for i, s := range sentences {
		if issueIndices[i] {
			continue
		}
		kept = append(kept, s)
	}
	return strings.Join(kept, " ")
}

// mechanicalSummary synthesizes a 2-line, citation-free summary from
// whatever sentences survived the mechanical drop, matching
// repair_agent.py's _mechanical_summary fallback.
func mechanicalSummary(text string) string {
	stripped := textutil.StripCitations(text)
	sentences := textutil.SplitSentences(stripped)
	if len(sentences) == 0 {
		return "This section was revised during repair."
	}
	if len(sentences) == 1 {
		return sentences[0]
	}
	return sentences[0] + " " + sentences[1]
}

// mechanicalNextSectionPatch rewrites the next section's first two
// sentences to a generic narrative transition, leaving every sentence from
// index 2 onward untouched — the mechanical-fallback counterpart to the
// LLM continuity_patch, used only when the current section has no
// evidence pack (spec.md §4.13 point 2).
func mechanicalNextSectionPatch(nextText string) string {
	sentences := textutil.SplitSentences(nextText)
	if len(sentences) == 0 {
		return nextText
	}
	bridge := "Building on the preceding discussion, this section turns to the next set of considerations."
	switch len(sentences) {
	case 1:
		return bridge
	default:
		sentences[0] = bridge
		if len(sentences) > 1 {
			sentences[1] = "The points that follow were reached independently of the revision above."
		}
		return strings.Join(sentences, " ")
	}
}
