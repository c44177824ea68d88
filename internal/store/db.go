// Package store is the repository layer: hand-written pgx/v5 SQL for every
// entity in spec.md §3 except Run (owned by internal/runstate, which also
// needs row-locked writes) and RunEvent appends (owned by
// internal/runstate's EventSink). This package still provides the read
// side of the event log, since that's a plain reader, not a writer.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool and pgx.Tx every repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
