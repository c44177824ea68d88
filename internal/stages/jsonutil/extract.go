// Package jsonutil extracts a JSON object or array out of an LLM response
// that may be wrapped in prose or code fences. Every orchestrator node in
// original_source duplicates its own copy of this exact routine
// (_extract_json_payload in retriever.py, writer.py, evaluator.py,
// repair_agent.py); it is consolidated here once rather than copy-pasted
// per Go stage package.
package jsonutil

import (
	"encoding/json"
	"strings"
)

// ExtractObject takes the span from the first { or [ in text through the
// last closing } or ] of the same kind (brackets are not balanced) and
// unmarshals it into out. Returns false if no JSON payload could be found
// or parsed.
func ExtractObject(text string, out any) bool {
	raw, ok := extractRaw(text)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

func extractRaw(text string) (string, bool) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return "", false
	}
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.Trim(strings.Trim(cleaned, "`"), " \t\r\n")
	}

	braceStart := strings.IndexByte(cleaned, '{')
	bracketStart := strings.IndexByte(cleaned, '[')
	start := -1
	switch {
	case braceStart == -1:
		start = bracketStart
	case bracketStart == -1:
		start = braceStart
	default:
		start = min(braceStart, bracketStart)
	}
	if start == -1 {
		return "", false
	}

	var end int
	if cleaned[start] == '{' {
		end = strings.LastIndexByte(cleaned, '}')
	} else {
		end = strings.LastIndexByte(cleaned, ']')
	}
	if end == -1 || end <= start {
		return "", false
	}
	return cleaned[start : end+1], true
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
