package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/researchops/runcore/internal/model"
)

// ReviewRepo persists the Evaluator's verdicts, one per section per run.
type ReviewRepo struct{}

func NewReviewRepo() *ReviewRepo { return &ReviewRepo{} }

func (r *ReviewRepo) Upsert(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID, sectionID string, verdict model.ReviewVerdict, issues []model.ReviewIssue) (model.SectionReview, error) {
	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return model.SectionReview{}, fmt.Errorf("marshal issues: %w", err)
	}

	var rev model.SectionReview
	var rawIssues json.RawMessage
	err = db.QueryRow(ctx, `
		INSERT INTO section_reviews (tenant_id, run_id, section_id, verdict, issues_json, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (tenant_id, run_id, section_id)
		DO UPDATE SET verdict = EXCLUDED.verdict, issues_json = EXCLUDED.issues_json, reviewed_at = now()
		RETURNING tenant_id, run_id, section_id, verdict, issues_json, reviewed_at
	`, tenantID, runID, sectionID, string(verdict), issuesJSON).Scan(
		&rev.TenantID, &rev.RunID, &rev.SectionID, &rev.Verdict, &rawIssues, &rev.ReviewedAt,
	)
	if err != nil {
		return model.SectionReview{}, fmt.Errorf("upsert section review: %w", err)
	}
	if err := json.Unmarshal(rawIssues, &rev.Issues); err != nil {
		return model.SectionReview{}, fmt.Errorf("unmarshal issues: %w", err)
	}
	return rev, nil
}

// ListForRun returns every section's latest review, used by the Repair
// stage to find which sections need rewriting.
func (r *ReviewRepo) ListForRun(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID) ([]model.SectionReview, error) {
	rows, err := db.Query(ctx, `
		SELECT tenant_id, run_id, section_id, verdict, issues_json, reviewed_at
		FROM section_reviews WHERE tenant_id = $1 AND run_id = $2
	`, tenantID, runID)
	if err != nil {
		return nil, fmt.Errorf("list section reviews: %w", err)
	}
	defer rows.Close()

	var out []model.SectionReview
	for rows.Next() {
		var rev model.SectionReview
		var rawIssues json.RawMessage
		if err := rows.Scan(&rev.TenantID, &rev.RunID, &rev.SectionID, &rev.Verdict, &rawIssues, &rev.ReviewedAt); err != nil {
			return nil, fmt.Errorf("scan section review: %w", err)
		}
		if err := json.Unmarshal(rawIssues, &rev.Issues); err != nil {
			return nil, fmt.Errorf("unmarshal issues: %w", err)
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}
