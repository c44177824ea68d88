package store

import (
	"context"
	"fmt"

	"github.com/researchops/runcore/internal/model"
)

// ProjectRepo is the persistence side of the Project entity (spec.md §3).
type ProjectRepo struct{}

func NewProjectRepo() *ProjectRepo { return &ProjectRepo{} }

func (r *ProjectRepo) Get(ctx context.Context, db DBTX, tenantID model.TenantID, projectID model.ProjectID) (model.Project, error) {
	var p model.Project
	err := db.QueryRow(ctx, `
		SELECT tenant_id, id, name, last_run_id, last_run_status, last_activity_at, created_at, updated_at
		FROM projects WHERE tenant_id = $1 AND id = $2
	`, tenantID, projectID).Scan(
		&p.TenantID, &p.ID, &p.Name, &p.LastRunID, &p.LastRunStatus, &p.LastActivityAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return model.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// TouchFromRun updates a project's last_run_* denormalized fields,
// mirroring original_source truth.py's _touch_project_from_run. Called by
// internal/runstate.RunStore.TransitionRunStatus on every run transition
// (spec.md §4.2 step 5), so every run mutation touches its project.
func (r *ProjectRepo) TouchFromRun(ctx context.Context, db DBTX, tenantID model.TenantID, projectID model.ProjectID, runID model.RunID, status model.RunStatus) error {
	_, err := db.Exec(ctx, `
		UPDATE projects SET last_run_id = $3, last_run_status = $4, last_activity_at = now(), updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, projectID, runID, string(status))
	if err != nil {
		return fmt.Errorf("touch project from run: %w", err)
	}
	return nil
}
