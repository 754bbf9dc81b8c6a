package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXAdapter implements DBAdapter for pgxpool.Pool.
// Appends, snapshot writes and DDL always go to the primary; queries go to the replica when one is set.
type PGXAdapter struct {
	primary *pgxpool.Pool
	replica *pgxpool.Pool
}

// NewPGXAdapter creates an adapter that uses pool for everything.
func NewPGXAdapter(pool *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{primary: pool}
}

// NewPGXAdapterWithReplica creates an adapter that reads from replica.
func NewPGXAdapterWithReplica(pool *pgxpool.Pool, replica *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{primary: pool, replica: replica}
}

func (p *PGXAdapter) reader() *pgxpool.Pool {
	if p.replica != nil {
		return p.replica
	}

	return p.primary
}

func (p *PGXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := p.reader().Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgxRows{Rows: rows}, nil
}

func (p *PGXAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	tag, err := p.primary.Exec(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgxResult(tag), nil
}

func (p *PGXAdapter) Ping(ctx context.Context) error {
	return p.primary.Ping(ctx)
}

// pgxRows adapts pgx.Rows, whose Close has no error result.
type pgxRows struct {
	pgx.Rows
}

func (r pgxRows) Close() error {
	r.Rows.Close()
	return nil
}

// pgxResult adapts a command tag to DBResult.
type pgxResult pgconn.CommandTag

func (r pgxResult) RowsAffected() (int64, error) {
	return pgconn.CommandTag(r).RowsAffected(), nil
}
