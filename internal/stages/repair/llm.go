package repair

import (
	"context"
	"fmt"
	"strings"

	"github.com/researchops/runcore/internal/llm"
	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/stages/jsonutil"
)

var repairSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"section_id":      map[string]any{"type": "string"},
		"section_text":    map[string]any{"type": "string"},
		"section_summary": map[string]any{"type": "string"},
		"continuity_patch": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"next_section_id":   map[string]any{"type": "string"},
				"next_section_text": map[string]any{"type": "string"},
			},
			"required": []string{"next_section_text"},
		},
	},
	"required": []string{"section_id", "section_text", "section_summary", "continuity_patch"},
}

type continuityPatch struct {
	NextSectionID   string `json:"next_section_id"`
	NextSectionText string `json:"next_section_text"`
}

type repairResponse struct {
	SectionID       string          `json:"section_id"`
	SectionText     string          `json:"section_text"`
	SectionSummary  string          `json:"section_summary"`
	ContinuityPatch continuityPatch `json:"continuity_patch"`
}

func snippetPayload(snippets []model.Snippet, maxChars int) string {
	var b strings.Builder
	for _, sn := range snippets {
		text := sn.Text
		if len(text) > maxChars {
			text = text[:maxChars] + "…"
		}
		fmt.Fprintf(&b, "- [%s] %s\n", sn.ID.String(), text)
	}
	return b.String()
}

func issuesPayload(issues []model.ReviewIssue) string {
	var b strings.Builder
	for _, iss := range issues {
		fmt.Fprintf(&b, "- sentence %d: %s (%s) citations=%v\n", iss.SentenceIndex, iss.Problem, iss.Notes, iss.Citations)
	}
	return b.String()
}

// requestRepair asks the LLM to rewrite only the issue-flagged sentences
// of the current section and patch the next section's first two sentences
// for narrative continuity, matching repair_agent.py's
// _repair_section_with_llm.
func requestRepair(
	ctx context.Context, client llm.Client,
	section model.RunSection, currentText, priorSummary string, issues []model.ReviewIssue,
	currentSnippets []model.Snippet,
	nextSection model.RunSection, nextText string, nextSnippets []model.Snippet,
	cfg Config,
) (repairResponse, error) {
	if client == nil {
		return repairResponse{}, llm.ErrNotConfigured
	}

	prompt := fmt.Sprintf(
		"Section %q current text:\n%s\n\n"+
			"Prior section summary: %s\n\n"+
			"Issues to fix (only touch the sentences at these indices; every other sentence must be "+
			"returned byte-identical):\n%s\n"+
			"Evidence pack for this section (cite ONLY these ids):\n%s\n\n"+
			"Next section %q current text (for a continuity patch):\n%s\n"+
			"Next section evidence pack:\n%s\n\n"+
			"Rules:\n"+
			"- Revise ONLY the flagged sentences in the current section; every other sentence must be "+
			"byte-identical to the input.\n"+
			"- Citations remain [CITE:<snippet_id>] tokens placed only at sentence end.\n"+
			"- section_summary stays 1-3 citation-free sentences ending in terminal punctuation.\n"+
			"- continuity_patch.next_section_text may only change the FIRST TWO sentences of the next "+
			"section; every sentence from index 2 onward must be byte-identical to the next section's "+
			"current text.\n"+
			"Return ONLY valid JSON: {\"section_id\": %q, \"section_text\": \"...\", \"section_summary\": "+
			"\"...\", \"continuity_patch\": {\"next_section_id\": %q, \"next_section_text\": \"...\"}}\n",
		section.SectionID, currentText, priorSummary, issuesPayload(issues),
		snippetPayload(currentSnippets, cfg.SnippetTextMaxChars),
		nextSection.SectionID, nextText, snippetPayload(nextSnippets, cfg.SnippetTextMaxChars),
		section.SectionID, nextSection.SectionID,
	)

	resp, err := client.Generate(ctx, llm.Request{
		System:         "You make minimal, scope-preserving edits to research report sections and respond with strict JSON only.",
		Prompt:         prompt,
		MaxTokens:      1200,
		Temperature:    0.3,
		ResponseFormat: &llm.ResponseFormat{Name: "section_repair", Schema: repairSchema},
	})
	if err != nil {
		return repairResponse{}, fmt.Errorf("repair section %s: %w", section.SectionID, err)
	}

	var out repairResponse
	if !jsonutil.ExtractObject(resp.Text, &out) || out.SectionText == "" {
		return repairResponse{}, fmt.Errorf("section %s: LLM returned unparseable repair", section.SectionID)
	}
	if out.SectionID != section.SectionID {
		out.SectionID = section.SectionID
	}
	if out.ContinuityPatch.NextSectionID == "" {
		out.ContinuityPatch.NextSectionID = nextSection.SectionID
	}
	return out, nil
}
