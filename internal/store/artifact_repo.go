package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/researchops/runcore/internal/model"
)

// ArtifactRepo persists Exporter output: the report_md blob, keyed on
// artifactType so future Exporter-written artifact kinds need no schema
// change.
type ArtifactRepo struct{}

func NewArtifactRepo() *ArtifactRepo { return &ArtifactRepo{} }

// Upsert writes or replaces the artifact of a given type for a run, per
// spec.md §3's unique (tenant_id, run_id, type) contract.
func (r *ArtifactRepo) Upsert(ctx context.Context, db DBTX, tenantID model.TenantID, projectID model.ProjectID, runID model.RunID, artifactType, blobRef, mimeType string, sizeBytes int64, metadata json.RawMessage) (model.Artifact, error) {
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	var a model.Artifact
	err := db.QueryRow(ctx, `
		INSERT INTO artifacts (tenant_id, id, project_id, run_id, type, blob_ref, mime_type, size_bytes, metadata_json)
		VALUES ($1, gen_random_uuid(), $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, run_id, type)
		DO UPDATE SET blob_ref = EXCLUDED.blob_ref, mime_type = EXCLUDED.mime_type,
			size_bytes = EXCLUDED.size_bytes, metadata_json = EXCLUDED.metadata_json, updated_at = now()
		RETURNING tenant_id, id, project_id, run_id, type, blob_ref, mime_type, size_bytes,
			metadata_json, created_at, updated_at
	`, tenantID, projectID, runID, artifactType, blobRef, mimeType, sizeBytes, metadata).Scan(
		&a.TenantID, &a.ID, &a.ProjectID, &a.RunID, &a.Type, &a.BlobRef, &a.MimeType, &a.SizeBytes,
		&a.MetadataJSON, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("upsert artifact: %w", err)
	}
	return a, nil
}

func (r *ArtifactRepo) ListForRun(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID) ([]model.Artifact, error) {
	rows, err := db.Query(ctx, `
		SELECT tenant_id, id, project_id, run_id, type, blob_ref, mime_type, size_bytes,
			metadata_json, created_at, updated_at
		FROM artifacts WHERE tenant_id = $1 AND run_id = $2 ORDER BY type ASC
	`, tenantID, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []model.Artifact
	for rows.Next() {
		var a model.Artifact
		if err := rows.Scan(&a.TenantID, &a.ID, &a.ProjectID, &a.RunID, &a.Type, &a.BlobRef, &a.MimeType,
			&a.SizeBytes, &a.MetadataJSON, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
