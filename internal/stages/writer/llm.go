package writer

import (
	"context"
	"fmt"
	"strings"

	"github.com/researchops/runcore/internal/llm"
	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/stages/jsonutil"
)

var sectionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"section_id":      map[string]any{"type": "string"},
		"section_text":    map[string]any{"type": "string"},
		"section_summary": map[string]any{"type": "string"},
		"status":          map[string]any{"type": "string"},
	},
	"required": []string{"section_id", "section_text", "section_summary", "status"},
}

type sectionDraft struct {
	SectionID      string `json:"section_id"`
	SectionText    string `json:"section_text"`
	SectionSummary string `json:"section_summary"`
	Status         string `json:"status"`
}

// snippetPayload renders a section's evidence pack for the prompt,
// truncating each snippet's text, matching writer.py's snippet payload
// construction.
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

// generateSection asks the LLM to draft one section, carrying the prior
// section's micro-summary and the next section's title for the closing
// transition sentence — grounded on writer.py's _generate_section_with_llm.
func generateSection(
	ctx context.Context, client llm.Client,
	reportTitle string, sectionIdx, totalSections int,
	section model.RunSection, note model.OutlineNote,
	priorSummary, nextTitle string,
	snippets []model.Snippet, cfg Config,
) (sectionDraft, error) {
	if client == nil {
		return sectionDraft{}, llm.ErrNotConfigured
	}

	prompt := fmt.Sprintf(
		"Report title: %s\n"+
			"Section %d of %d: %q\n"+
			"Section goal: %s\n"+
			"Key points to cover: %s\n"+
			"Prior section summary: %s\n"+
			"Next section title: %s\n\n"+
			"Evidence snippets (cite ONLY these ids):\n%s\n"+
			"Rules:\n"+
			"- Every factual sentence must end with one or more [CITE:<snippet_id>] tokens.\n"+
			"- Citations appear only at the very end of a sentence, never mid-sentence.\n"+
			"- No headings or bullet lists; write flowing prose.\n"+
			"- The first 1-2 sentences must be a narrative transition from the prior summary.\n"+
			"- The last sentence must bridge to the next section.\n"+
			"- section_summary must be exactly 1-3 citation-free sentences ending in terminal punctuation.\n"+
			"Return ONLY valid JSON: {\"section_id\": %q, \"section_text\": \"...\", \"section_summary\": \"...\", \"status\": \"ok\"}\n",
		reportTitle, sectionIdx, totalSections, section.Title, section.Goal,
		strings.Join(note.KeyPoints, "; "), priorSummary, nextTitle,
		snippetPayload(snippets, cfg.SnippetTextMaxChars), section.SectionID,
	)

	resp, err := client.Generate(ctx, llm.Request{
		System:         "You write evidence-grounded research report sections and respond with strict JSON only.",
		Prompt:         prompt,
		MaxTokens:      1200,
		Temperature:    0.4,
		ResponseFormat: &llm.ResponseFormat{Name: "draft_section", Schema: sectionSchema},
	})
	if err != nil {
		return sectionDraft{}, fmt.Errorf("generate section %s: %w", section.SectionID, err)
	}

	var draft sectionDraft
	if !jsonutil.ExtractObject(resp.Text, &draft) || draft.SectionText == "" {
		return sectionDraft{}, fmt.Errorf("section %s: LLM returned unparseable draft", section.SectionID)
	}
	if draft.SectionID != section.SectionID {
		draft.SectionID = section.SectionID
	}
	return draft, nil
}
