package model

import "time"

// Project owns a set of Runs. Name is unique per tenant.
type Project struct {
	TenantID       TenantID
	ID             ProjectID
	Name           string
	LastRunID      *RunID
	LastRunStatus  *string
	LastActivityAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
