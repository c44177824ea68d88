// Package evaluator implements the Evaluator stage: per-section LLM
// verdicts with issue normalization and a forced-fail rule (spec.md
// §4.12), grounded on original_source/.../nodes/evaluator.py.
package evaluator

import "github.com/researchops/runcore/internal/model"

// normalizeIssues filters unknown problem codes, coerces sentence_index to
// a sane default, and drops citation ids outside the section's evidence
// pack — matching evaluator.py's _normalize_issue.
func normalizeIssues(raw []model.ReviewIssue, allowedIDs map[string]bool) []model.ReviewIssue {
	var out []model.ReviewIssue
	for _, issue := range raw {
		if !model.AllowedReviewProblems[issue.Problem] {
			continue
		}
		if issue.SentenceIndex < 0 {
			issue.SentenceIndex = 0
		}

		var filteredCitations []string
		droppedAny := false
		for _, c := range issue.Citations {
			if allowedIDs[c] {
				filteredCitations = append(filteredCitations, c)
			} else {
				droppedAny = true
			}
		}
		issue.Citations = filteredCitations
		if droppedAny && issue.Notes == "" {
			issue.Notes = "Filtered invalid citations."
		}
		out = append(out, issue)
	}
	return out
}
