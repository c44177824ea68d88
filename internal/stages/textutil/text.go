// Package textutil holds the sentence-splitting and citation-token helpers
// shared by the Draft, Evaluate and Repair stages. writer.py and
// repair_agent.py each carry their own identical copies of
// _split_into_sentences/_citations_at_sentence_end/_extract_citations; this
// package consolidates the one copy every Go stage imports instead of
// repeating the regexes three times.
package textutil

import "regexp"

var (
	citationPattern     = regexp.MustCompile(`\[CITE:([a-fA-F0-9-]+)\]`)
	sentenceSplitPattern = regexp.MustCompile(`(?:[.!?])\s+`)
	wordPattern         = regexp.MustCompile(`[A-Za-z0-9]+(?:'[A-Za-z0-9]+)?`)
	citationRunPattern  = regexp.MustCompile(`(\[CITE:[^\]]+\](?:\s+\[CITE:[^\]]+\])*)$`)
	citationTokenPattern = regexp.MustCompile(`\[CITE:[^\]]+\]`)
)

// SplitSentences splits on whitespace following ., ! or ?, matching
// original_source's re.split(r"(?<=[.!?])\s+", text) behavior (the
// trailing punctuation stays attached to the sentence it ends).
func SplitSentences(text string) []string {
	cleaned := trimSpace(text)
	if cleaned == "" {
		return nil
	}
	idx := sentenceSplitPattern.FindAllStringIndex(cleaned, -1)
	if len(idx) == 0 {
		return []string{cleaned}
	}
	var out []string
	prev := 0
	for _, m := range idx {
		// split occurs between the punctuation (kept in the left part) and
		// the following whitespace run.
		boundary := m[0] + 1
		out = append(out, trimSpace(cleaned[prev:boundary]))
		prev = m[1]
	}
	out = append(out, trimSpace(cleaned[prev:]))
	var filtered []string
	for _, s := range out {
		if s != "" {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// ExtractCitations returns every [CITE:id] token's id, in order, duplicates
// included.
func ExtractCitations(text string) []string {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// CitationsAtSentenceEnd reports whether every [CITE:...] token in sentence
// appears contiguously at its very end (after stripping trailing
// punctuation), matching repair_agent.py's _citations_at_sentence_end.
func CitationsAtSentenceEnd(sentence string) bool {
	cleaned := trimSpace(sentence)
	if cleaned == "" {
		return true
	}
	if last := cleaned[len(cleaned)-1]; last == '.' || last == '!' || last == '?' {
		cleaned = trimSpace(cleaned[:len(cleaned)-1])
	}
	tailMatch := citationRunPattern.FindStringSubmatch(cleaned)
	if tailMatch == nil {
		return false
	}
	allCites := citationTokenPattern.FindAllString(cleaned, -1)
	tailCites := citationTokenPattern.FindAllString(tailMatch[1], -1)
	return len(allCites) == len(tailCites)
}

// WordCount counts alphanumeric words, matching writer.py's _word_count.
func WordCount(text string) int {
	return len(wordPattern.FindAllString(text, -1))
}

// StripCitations removes every [CITE:...] token and collapses the
// resulting double spaces, matching repair_agent.py's _strip_citations.
func StripCitations(text string) string {
	cleaned := citationPattern.ReplaceAllString(text, "")
	cleaned = collapseSpaces(cleaned)
	if cleaned != "" {
		last := cleaned[len(cleaned)-1]
		if last != '.' && last != '!' && last != '?' {
			cleaned += "."
		}
	}
	return cleaned
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func collapseSpaces(s string) string {
	out := make([]byte, 0, len(s))
	lastSpace := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isSpace(c) {
			if !lastSpace {
				out = append(out, ' ')
			}
			lastSpace = true
			continue
		}
		out = append(out, c)
		lastSpace = false
	}
	return trimSpace(string(out))
}
