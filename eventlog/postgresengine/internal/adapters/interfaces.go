package adapters

import (
	"context"
)

// DBAdapter is what the event log needs from a Postgres handle: run a query, run a statement, ping.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
	Ping(ctx context.Context) error
}

// DBRows is satisfied by *sql.Rows directly; pgx rows are wrapped.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult is satisfied by sql.Result directly; pgx command tags are wrapped.
type DBResult interface {
	RowsAffected() (int64, error)
}
