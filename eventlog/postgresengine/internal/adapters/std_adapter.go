package adapters

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// stdDB is the part of *sql.DB that *sqlx.DB shares through embedding.
type stdDB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PingContext(ctx context.Context) error
}

// StdAdapter implements DBAdapter on top of database/sql, for both sql.DB and sqlx.DB handles.
// The event log builds complete statements with goqu, so sqlx's named-query helpers are not needed here.
type StdAdapter struct {
	db stdDB
}

// NewSQLAdapter wraps a *sql.DB.
func NewSQLAdapter(db *sql.DB) *StdAdapter {
	return &StdAdapter{db: db}
}

// NewSQLXAdapter wraps a *sqlx.DB.
func NewSQLXAdapter(db *sqlx.DB) *StdAdapter {
	return &StdAdapter{db: db}
}

func (s *StdAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (s *StdAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	return s.db.ExecContext(ctx, query)
}

func (s *StdAdapter) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
