package store

import (
	"context"
	"fmt"

	"github.com/researchops/runcore/internal/model"
)

// DraftRepo persists Writer output, later overwritten in place by Repair.
type DraftRepo struct{}

func NewDraftRepo() *DraftRepo { return &DraftRepo{} }

// Upsert writes or replaces a section's draft text, grounded on writer.py's
// _persist_draft_section upsert pattern.
func (r *DraftRepo) Upsert(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID, sectionID, text, sectionSummary string) (model.DraftSection, error) {
	var d model.DraftSection
	err := db.QueryRow(ctx, `
		INSERT INTO draft_sections (tenant_id, run_id, section_id, text, section_summary)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, run_id, section_id)
		DO UPDATE SET text = EXCLUDED.text, section_summary = EXCLUDED.section_summary, updated_at = now()
		RETURNING tenant_id, run_id, section_id, text, section_summary, created_at, updated_at
	`, tenantID, runID, sectionID, text, sectionSummary).Scan(
		&d.TenantID, &d.RunID, &d.SectionID, &d.Text, &d.SectionSummary, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return model.DraftSection{}, fmt.Errorf("upsert draft section: %w", err)
	}
	return d, nil
}

func (r *DraftRepo) Get(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID, sectionID string) (model.DraftSection, error) {
	var d model.DraftSection
	err := db.QueryRow(ctx, `
		SELECT tenant_id, run_id, section_id, text, section_summary, created_at, updated_at
		FROM draft_sections WHERE tenant_id = $1 AND run_id = $2 AND section_id = $3
	`, tenantID, runID, sectionID).Scan(
		&d.TenantID, &d.RunID, &d.SectionID, &d.Text, &d.SectionSummary, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return model.DraftSection{}, fmt.Errorf("get draft section: %w", err)
	}
	return d, nil
}

// ListOrdered returns every draft for a run, joined to run_sections so
// callers (the Exporter) get them in section_order.
func (r *DraftRepo) ListOrdered(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID) ([]model.DraftSection, error) {
	rows, err := db.Query(ctx, `
		SELECT d.tenant_id, d.run_id, d.section_id, d.text, d.section_summary, d.created_at, d.updated_at
		FROM draft_sections d
		JOIN run_sections s ON s.tenant_id = d.tenant_id AND s.run_id = d.run_id AND s.section_id = d.section_id
		WHERE d.tenant_id = $1 AND d.run_id = $2
		ORDER BY s.section_order ASC
	`, tenantID, runID)
	if err != nil {
		return nil, fmt.Errorf("list draft sections: %w", err)
	}
	defer rows.Close()

	var out []model.DraftSection
	for rows.Next() {
		var d model.DraftSection
		if err := rows.Scan(&d.TenantID, &d.RunID, &d.SectionID, &d.Text, &d.SectionSummary, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan draft section: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
