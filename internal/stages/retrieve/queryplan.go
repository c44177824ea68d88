package retrieve

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/researchops/runcore/internal/llm"
	"github.com/researchops/runcore/internal/stages/jsonutil"
)

// PlannedQuery is one (intent, query) pair the Retrieve stage fans out to
// every connector, grounded on retriever.py's query plan entries.
type PlannedQuery struct {
	Intent string `json:"intent"`
	Query  string `json:"query"`
}

var intentAliases = map[string]string{
	"background":      "background",
	"method":          "methodology",
	"methods":         "methodology",
	"methodology":     "methodology",
	"finding":         "findings",
	"findings":        "findings",
	"results":         "findings",
	"critique":        "critique",
	"criticism":       "critique",
	"limitations":     "critique",
	"application":     "application",
	"applications":    "application",
	"recent":          "recent_advances",
	"recent advances": "recent_advances",
	"recent_advances": "recent_advances",
}

func normalizeIntent(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	if mapped, ok := intentAliases[cleaned]; ok {
		return mapped
	}
	if mapped, ok := intentAliases[strings.ReplaceAll(cleaned, " ", "_")]; ok {
		return mapped
	}
	return "background"
}

var fallbackLinePattern = regexp.MustCompile(`(?im)^\s*([a-zA-Z_ ]+?)\s*[:\-]\s*(.+)$`)

// fallbackQueryPlan builds a query plan from the user's question directly
// when the LLM is unavailable or returns unusable output, matching
// retriever.py's _fallback_query_plan_from_text: try to parse "intent:
// query" / "intent - query" lines out of the raw text, else emit one query
// per allowed intent using the question verbatim.
func fallbackQueryPlan(question string) []PlannedQuery {
	var plan []PlannedQuery
	for _, m := range fallbackLinePattern.FindAllStringSubmatch(question, -1) {
		intent := normalizeIntent(m[1])
		query := strings.TrimSpace(m[2])
		if query == "" {
			continue
		}
		plan = append(plan, PlannedQuery{Intent: intent, Query: query})
	}
	if len(plan) > 0 {
		return plan
	}
	for _, intent := range AllowedIntents {
		plan = append(plan, PlannedQuery{Intent: intent, Query: question})
	}
	return plan
}

var queryPlanSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"queries": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"intent": map[string]any{"type": "string"},
					"query":  map[string]any{"type": "string"},
				},
				"required": []string{"intent", "query"},
			},
		},
	},
	"required": []string{"queries"},
}

// BuildQueryPlan asks the LLM to decompose the research question into one
// query per intent, falling back to a local heuristic parse when the LLM
// is unconfigured or its output can't be parsed — grounded on
// retriever.py's _build_query_plan/_build_query_plan_with_llm.
func BuildQueryPlan(ctx context.Context, client llm.Client, question string) (plan []PlannedQuery, llmUsed bool, err error) {
	if client == nil {
		return fallbackQueryPlan(question), false, nil
	}

	prompt := fmt.Sprintf(
		"Decompose this research question into search queries, one per intent.\n"+
			"Allowed intents: %s\n"+
			"Return ONLY valid JSON: {\"queries\": [{\"intent\": \"...\", \"query\": \"...\"}]}\n\n"+
			"Research question: %s\n",
		strings.Join(AllowedIntents, ", "), question,
	)
	resp, genErr := client.Generate(ctx, llm.Request{
		System:      "You decompose research questions into targeted search queries and respond with strict JSON only.",
		Prompt:      prompt,
		MaxTokens:   800,
		Temperature: 0.2,
		ResponseFormat: &llm.ResponseFormat{Name: "query_plan", Schema: queryPlanSchema},
	})
	if genErr != nil {
		return fallbackQueryPlan(question), false, nil
	}

	var payload struct {
		Queries []PlannedQuery `json:"queries"`
	}
	if !jsonutil.ExtractObject(resp.Text, &payload) || len(payload.Queries) == 0 {
		return fallbackQueryPlan(question), false, nil
	}

	for i := range payload.Queries {
		payload.Queries[i].Intent = normalizeIntent(payload.Queries[i].Intent)
	}
	return payload.Queries, true, nil
}
