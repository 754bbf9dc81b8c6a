package config

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq" // postgres driver
)

const driverPostgres = "postgres"

// OpenSQLDB opens and pings a *sql.DB using the lib/pq driver.
func OpenSQLDB(ctx context.Context, cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open(driverPostgres, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, pingErr
	}

	return db, nil
}
