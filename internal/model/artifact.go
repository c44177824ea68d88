package model

import (
	"encoding/json"
	"time"
)

// Artifact is a durable output of a run, upserted by type. The Exporter
// writes the "report_md" type; content lives at BlobRef (out of scope how
// BlobRef resolves to bytes — the core only records the reference) with a
// convenience copy of small text content kept in MetadataJSON.
type Artifact struct {
	TenantID     TenantID
	ID           ArtifactID
	ProjectID    ProjectID
	RunID        *RunID
	Type         string
	BlobRef      string
	MimeType     string
	SizeBytes    int64
	MetadataJSON json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	ArtifactTypeReportMarkdown = "report_md"
)
