package writer

import (
	"fmt"
	"strings"

	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/stages/textutil"
)

// resolveCitationIDs rewrites every [CITE:X] token's id to the full
// snippet id it uniquely prefix-matches within allowedIDs, case
// insensitively. It fails if X matches zero or more than one allowed id,
// matching writer.py's _resolve_citation_ids.
func resolveCitationIDs(text string, allowedIDs []model.SnippetID) (string, error) {
	lowerAllowed := make(map[string]string, len(allowedIDs))
	for _, id := range allowedIDs {
		full := id.String()
		lowerAllowed[strings.ToLower(full)] = full
	}

	var resolveErr error
	resolved := citationTokenReplace(text, func(raw string) string {
		if resolveErr != nil {
			return raw
		}
		lowerRaw := strings.ToLower(raw)
		if full, ok := lowerAllowed[lowerRaw]; ok {
			return "[CITE:" + full + "]"
		}
		var matches []string
		for lower, full := range lowerAllowed {
			if strings.HasPrefix(lower, lowerRaw) {
				matches = append(matches, full)
			}
		}
		switch len(matches) {
		case 1:
			return "[CITE:" + matches[0] + "]"
		case 0:
			resolveErr = fmt.Errorf("citation %q does not match any snippet in this section's evidence pack", raw)
			return raw
		default:
			resolveErr = fmt.Errorf("citation %q is an ambiguous prefix matching %d snippets", raw, len(matches))
			return raw
		}
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return resolved, nil
}

// citationTokenReplace rewrites each [CITE:id] token's id via fn, leaving
// the rest of the text untouched.
func citationTokenReplace(text string, fn func(id string) string) string {
	var out strings.Builder
	i := 0
	for i < len(text) {
		start := strings.Index(text[i:], "[CITE:")
		if start == -1 {
			out.WriteString(text[i:])
			break
		}
		start += i
		out.WriteString(text[i:start])
		end := strings.Index(text[start:], "]")
		if end == -1 {
			out.WriteString(text[start:])
			break
		}
		end += start
		id := text[start+len("[CITE:") : end]
		out.WriteString(fn(id))
		i = end + 1
	}
	return out.String()
}

// validateSectionText resolves citation ids against allowedIDs, then
// requires that every cited sentence's tokens sit only at the sentence's
// end, matching writer.py's _validate_section_text.
func validateSectionText(text string, allowedIDs []model.SnippetID) (string, error) {
	resolved, err := resolveCitationIDs(text, allowedIDs)
	if err != nil {
		return "", err
	}
	for _, sentence := range textutil.SplitSentences(resolved) {
		if len(textutil.ExtractCitations(sentence)) == 0 {
			continue
		}
		if !textutil.CitationsAtSentenceEnd(sentence) {
			return "", fmt.Errorf("citations must appear only at the end of a sentence: %q", sentence)
		}
	}
	return resolved, nil
}
