package store

import (
	"context"
	"fmt"

	"github.com/researchops/runcore/internal/model"
)

// EvidenceRepo persists the Evidence-Pack stage's section->snippet
// membership rows, which the Writer/Evaluator/Repair stages read to
// validate citation tokens.
type EvidenceRepo struct{}

func NewEvidenceRepo() *EvidenceRepo { return &EvidenceRepo{} }

// ReplaceForSection deletes and reinserts a section's evidence membership,
// grounded on evidence_packer.py's _persist_section_evidence
// delete-then-reinsert pattern.
func (r *EvidenceRepo) ReplaceForSection(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID, sectionID string, snippetIDs []model.SnippetID) error {
	if _, err := db.Exec(ctx, `
		DELETE FROM section_evidence WHERE tenant_id = $1 AND run_id = $2 AND section_id = $3
	`, tenantID, runID, sectionID); err != nil {
		return fmt.Errorf("clear section evidence: %w", err)
	}
	for _, sid := range snippetIDs {
		if _, err := db.Exec(ctx, `
			INSERT INTO section_evidence (tenant_id, run_id, section_id, snippet_id)
			VALUES ($1, $2, $3, $4)
		`, tenantID, runID, sectionID, sid); err != nil {
			return fmt.Errorf("insert section evidence: %w", err)
		}
	}
	return nil
}

// ListForSection returns the snippet ids a section is permitted to cite.
func (r *EvidenceRepo) ListForSection(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID, sectionID string) ([]model.SnippetID, error) {
	rows, err := db.Query(ctx, `
		SELECT snippet_id FROM section_evidence
		WHERE tenant_id = $1 AND run_id = $2 AND section_id = $3
	`, tenantID, runID, sectionID)
	if err != nil {
		return nil, fmt.Errorf("list section evidence: %w", err)
	}
	defer rows.Close()

	var ids []model.SnippetID
	for rows.Next() {
		var id model.SnippetID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan snippet id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
