package evaluator

import (
	"context"
	"fmt"
	"strings"

	"github.com/researchops/runcore/internal/llm"
	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/stages/jsonutil"
)

var sectionReviewSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"section_id": map[string]any{"type": "string"},
		"verdict":    map[string]any{"type": "string", "enum": []string{"pass", "fail"}},
		"issues": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sentence_index": map[string]any{"type": "integer"},
					"problem":        map[string]any{"type": "string"},
					"notes":          map[string]any{"type": "string"},
					"citations":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"sentence_index", "problem"},
			},
		},
	},
	"required": []string{"section_id", "verdict", "issues"},
}

type sectionVerdict struct {
	SectionID string              `json:"section_id"`
	Verdict   string              `json:"verdict"`
	Issues    []model.ReviewIssue `json:"issues"`
}

// evaluateSection asks the LLM to check one section's text against its
// evidence pack, matching evaluator.py's _evaluate_section_with_llm.
func evaluateSection(ctx context.Context, client llm.Client, sectionID, text string, snippets []model.Snippet, maxChars int) (sectionVerdict, error) {
	if client == nil {
		return sectionVerdict{}, llm.ErrNotConfigured
	}

	var snippetLines strings.Builder
	for _, sn := range snippets {
		t := sn.Text
		if len(t) > maxChars {
			t = t[:maxChars] + "…"
		}
		fmt.Fprintf(&snippetLines, "- [%s] %s\n", sn.ID.String(), t)
	}

	prompt := fmt.Sprintf(
		"Section %q text:\n%s\n\n"+
			"Evidence pack (the only snippets this section may cite):\n%s\n"+
			"Check every factual claim is supported by a cited snippet. Flag unsupported, contradicted, "+
			"missing_citation, invalid_citation, not_in_pack, or overstated claims with the sentence index "+
			"(0-based) where they occur.\n"+
			"Return ONLY valid JSON: {\"section_id\": %q, \"verdict\": \"pass\"|\"fail\", \"issues\": [...]}\n",
		sectionID, text, snippetLines.String(), sectionID,
	)

	resp, err := client.Generate(ctx, llm.Request{
		System:         "You rigorously fact-check research report sections against their evidence pack and respond with strict JSON only.",
		Prompt:         prompt,
		MaxTokens:      900,
		Temperature:    0.1,
		ResponseFormat: &llm.ResponseFormat{Name: "section_review", Schema: sectionReviewSchema},
	})
	if err != nil {
		return sectionVerdict{}, fmt.Errorf("evaluate section %s: %w", sectionID, err)
	}

	var verdict sectionVerdict
	if !jsonutil.ExtractObject(resp.Text, &verdict) {
		return sectionVerdict{}, fmt.Errorf("section %s: LLM returned unparseable review", sectionID)
	}
	if verdict.SectionID != sectionID {
		verdict.SectionID = sectionID
	}
	if verdict.Verdict != "pass" && verdict.Verdict != "fail" {
		verdict.Verdict = "fail"
	}
	return verdict, nil
}
