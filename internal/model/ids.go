// Package model defines the persisted entities of the Run Execution Core.
package model

import "github.com/google/uuid"

// TenantID, ProjectID, RunID and friends are all uuid.UUID under the hood.
// They are distinct names purely for readability at call sites; nothing
// prevents assignment between them, matching the teacher's own practice of
// using bare ent-generated IDs rather than wrapper types.
type (
	TenantID  = uuid.UUID
	ProjectID = uuid.UUID
	RunID     = uuid.UUID
	JobID     = uuid.UUID
	EventID   = uuid.UUID
	SourceID  = uuid.UUID
	SnippetID = uuid.UUID
	ArtifactID = uuid.UUID
)

// NewID generates a fresh random identifier for any of the aliases above.
func NewID() uuid.UUID {
	return uuid.New()
}
