package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/researchops/runcore/internal/model"
)

// OutlineRepo persists the Outline stage's output: RunSection rows (the
// section order/title/goal) and their matching OutlineNote rows.
type OutlineRepo struct{}

func NewOutlineRepo() *OutlineRepo { return &OutlineRepo{} }

// ReplaceSections deletes any prior outline for the run (repair reruns the
// Outline stage's output path only through Writer/Repair, never Outline
// itself, but a retried run starts clean) and inserts the new one.
func (r *OutlineRepo) ReplaceSections(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID, sections []model.RunSection, notes []model.OutlineNote) error {
	if _, err := db.Exec(ctx, `DELETE FROM run_sections WHERE tenant_id = $1 AND run_id = $2`, tenantID, runID); err != nil {
		return fmt.Errorf("clear run sections: %w", err)
	}
	for _, s := range sections {
		if _, err := db.Exec(ctx, `
			INSERT INTO run_sections (tenant_id, run_id, section_id, title, goal, section_order)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, tenantID, runID, s.SectionID, s.Title, s.Goal, s.SectionOrder); err != nil {
			return fmt.Errorf("insert run section %s: %w", s.SectionID, err)
		}
	}
	for _, n := range notes {
		keyPoints, err := json.Marshal(n.KeyPoints)
		if err != nil {
			return fmt.Errorf("marshal key_points: %w", err)
		}
		themes, err := json.Marshal(n.SuggestedEvidenceThemes)
		if err != nil {
			return fmt.Errorf("marshal evidence themes: %w", err)
		}
		if _, err := db.Exec(ctx, `
			INSERT INTO outline_notes (tenant_id, run_id, section_id, key_points, suggested_evidence_themes)
			VALUES ($1, $2, $3, $4, $5)
		`, tenantID, runID, n.SectionID, keyPoints, themes); err != nil {
			return fmt.Errorf("insert outline note %s: %w", n.SectionID, err)
		}
	}
	return nil
}

// ListSections returns a run's sections ordered by section_order.
func (r *OutlineRepo) ListSections(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID) ([]model.RunSection, error) {
	rows, err := db.Query(ctx, `
		SELECT tenant_id, run_id, section_id, title, goal, section_order
		FROM run_sections WHERE tenant_id = $1 AND run_id = $2 ORDER BY section_order ASC
	`, tenantID, runID)
	if err != nil {
		return nil, fmt.Errorf("list run sections: %w", err)
	}
	defer rows.Close()

	var out []model.RunSection
	for rows.Next() {
		var s model.RunSection
		if err := rows.Scan(&s.TenantID, &s.RunID, &s.SectionID, &s.Title, &s.Goal, &s.SectionOrder); err != nil {
			return nil, fmt.Errorf("scan run section: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetNote returns the OutlineNote for one section.
func (r *OutlineRepo) GetNote(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID, sectionID string) (model.OutlineNote, error) {
	var n model.OutlineNote
	var keyPoints, themes json.RawMessage
	err := db.QueryRow(ctx, `
		SELECT tenant_id, run_id, section_id, key_points, suggested_evidence_themes
		FROM outline_notes WHERE tenant_id = $1 AND run_id = $2 AND section_id = $3
	`, tenantID, runID, sectionID).Scan(&n.TenantID, &n.RunID, &n.SectionID, &keyPoints, &themes)
	if err != nil {
		return model.OutlineNote{}, fmt.Errorf("get outline note: %w", err)
	}
	if err := json.Unmarshal(keyPoints, &n.KeyPoints); err != nil {
		return model.OutlineNote{}, fmt.Errorf("unmarshal key_points: %w", err)
	}
	if err := json.Unmarshal(themes, &n.SuggestedEvidenceThemes); err != nil {
		return model.OutlineNote{}, fmt.Errorf("unmarshal evidence themes: %w", err)
	}
	return n, nil
}
