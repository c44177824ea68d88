package runstate

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool and pgx.Tx that the Run Store needs.
// Accepting the interface rather than a concrete type lets callers pass
// either a transaction (for atomic co-writes, per spec.md §4.2) or the bare
// pool (for read-only checks like CheckCancelRequested).
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
