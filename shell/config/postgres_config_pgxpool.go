package config

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXPoolConfig creates a tuned pgxpool.Config for dsn.
func PGXPoolConfig(cfg PostgresConfig, dsn string) (*pgxpool.Config, error) {
	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Join(ErrInvalidPostgresConfig, err)
	}

	dbConfig.MaxConns = cfg.MaxConns
	dbConfig.MinConns = cfg.MinConns
	dbConfig.MaxConnLifetime = cfg.MaxConnLifetime
	dbConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	dbConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	return dbConfig, nil
}

// OpenPGXPool creates and pings a pgxpool.Pool for dsn.
func OpenPGXPool(ctx context.Context, cfg PostgresConfig, dsn string) (*pgxpool.Pool, error) {
	dbConfig, err := PGXPoolConfig(cfg, dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
