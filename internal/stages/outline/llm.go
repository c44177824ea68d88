package outline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/researchops/runcore/internal/llm"
	"github.com/researchops/runcore/internal/stages/jsonutil"
)

var outlineSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"sections": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"section_id":                map[string]any{"type": "string"},
					"title":                     map[string]any{"type": "string"},
					"goal":                      map[string]any{"type": "string"},
					"key_points":                map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"suggested_evidence_themes": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"section_order":             map[string]any{"type": "integer"},
				},
				"required": []string{"section_id", "title", "goal", "key_points", "suggested_evidence_themes", "section_order"},
			},
		},
	},
	"required": []string{"sections"},
}

var errNoSections = errors.New("outline: LLM returned no sections")

// generate asks the LLM for an outline sized to the source count, matching
// outline.py's _generate_outline.
func generate(ctx context.Context, client llm.Client, cfg Config, question string, sourceCount int) ([]sectionPlan, error) {
	if client == nil {
		return nil, llm.ErrNotConfigured
	}
	prompt := fmt.Sprintf(
		"Design a report outline for this research question, with %s sections.\n"+
			"Research question: %s\n"+
			"First section must have section_id \"intro\". Last must have section_id \"conclusion\".\n"+
			"Each section's goal must be 2-3 sentences. Each section needs %d-%d key_points and at least one suggested_evidence_theme.\n"+
			"Return ONLY valid JSON: {\"sections\": [...]}\n",
		sectionCountHint(cfg, sourceCount), question, cfg.MinKeyPoints, cfg.MaxKeyPoints,
	)
	return callAndParse(ctx, client, prompt)
}

// repair re-asks the LLM with the specific violated rules listed, matching
// outline.py's _repair_outline (one corrective round only).
func repair(ctx context.Context, client llm.Client, question string, violations []string, prior []sectionPlan) ([]sectionPlan, error) {
	if client == nil {
		return nil, llm.ErrNotConfigured
	}
	prompt := fmt.Sprintf(
		"The previous outline for this research question violated these rules:\n- %s\n\n"+
			"Research question: %s\n"+
			"Produce a corrected outline as JSON: {\"sections\": [...]} fixing every violation above.\n",
		strings.Join(violations, "\n- "), question,
	)
	return callAndParse(ctx, client, prompt)
}

func callAndParse(ctx context.Context, client llm.Client, prompt string) ([]sectionPlan, error) {
	resp, err := client.Generate(ctx, llm.Request{
		System:         "You design structured research report outlines and respond with strict JSON only.",
		Prompt:         prompt,
		MaxTokens:      1500,
		Temperature:    0.3,
		ResponseFormat: &llm.ResponseFormat{Name: "outline", Schema: outlineSchema},
	})
	if err != nil {
		return nil, fmt.Errorf("generate outline: %w", err)
	}
	var payload struct {
		Sections []sectionPlan `json:"sections"`
	}
	if !jsonutil.ExtractObject(resp.Text, &payload) || len(payload.Sections) == 0 {
		return nil, errNoSections
	}
	return payload.Sections, nil
}

func sectionCountHint(cfg Config, sourceCount int) string {
	if sourceCount >= cfg.ManySourcesThreshold {
		return fmt.Sprintf("%d-%d", cfg.MinSectionsManySources, cfg.MaxSectionsManySources)
	}
	return fmt.Sprintf("%d-%d", cfg.MinSectionsFewSources, cfg.MaxSectionsFewSources)
}
