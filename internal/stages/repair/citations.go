package repair

import (
	"fmt"
	"strings"

	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/stages/textutil"
)

// resolveCitationIDs and validateSectionText are repair's own copies of
// writer's identical validators — original_source carries a separate copy
// in writer.py and repair_agent.py (see textutil's package doc), and this
// implementation preserves that duplication rather than introducing a
// cross-stage dependency between two otherwise independent packages.
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
