package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Supported values of TICKETSIM_DB_ADAPTER.
const (
	AdapterPGX  = "pgx"
	AdapterSQL  = "sql"
	AdapterSQLX = "sqlx"
)

var (
	// ErrInvalidPostgresConfig is returned when the Postgres settings cannot be used.
	ErrInvalidPostgresConfig = errors.New("invalid postgres config")

	// ErrUnknownAdapter is returned for TICKETSIM_DB_ADAPTER values other than pgx, sql and sqlx.
	ErrUnknownAdapter = errors.New("unknown database adapter")

	// ErrPostgresNotConfigured is returned when a database is needed but no DSN is set.
	ErrPostgresNotConfigured = errors.New("postgres dsn not configured")
)

// PostgresConfig holds the Postgres connection settings. An empty DSN disables persistence.
type PostgresConfig struct {
	DSN               string        `env:"TICKETSIM_POSTGRES_DSN"`
	ReplicaDSN        string        `env:"TICKETSIM_POSTGRES_REPLICA_DSN"`
	Adapter           string        `env:"TICKETSIM_DB_ADAPTER"                envDefault:"pgx"`
	EventTable        string        `env:"TICKETSIM_EVENT_TABLE"               envDefault:"ticket_events"`
	SnapshotTable     string        `env:"TICKETSIM_SNAPSHOT_TABLE"            envDefault:"ticket_run_snapshots"`
	MaxConns          int32         `env:"TICKETSIM_POSTGRES_MAX_CONNS"        envDefault:"8"`
	MinConns          int32         `env:"TICKETSIM_POSTGRES_MIN_CONNS"        envDefault:"2"`
	MaxConnLifetime   time.Duration `env:"TICKETSIM_POSTGRES_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime   time.Duration `env:"TICKETSIM_POSTGRES_MAX_CONN_IDLE"    envDefault:"5m"`
	HealthCheckPeriod time.Duration `env:"TICKETSIM_POSTGRES_HEALTH_CHECK"     envDefault:"1m"`
	ConnectTimeout    time.Duration `env:"TICKETSIM_POSTGRES_CONNECT_TIMEOUT"  envDefault:"5s"`
}

// LoadPostgresConfigFromEnv reads a PostgresConfig from the process environment.
func LoadPostgresConfigFromEnv() (PostgresConfig, error) {
	return loadPostgresConfig(env.Options{})
}

// LoadPostgresConfigFromEnvironment reads a PostgresConfig from the given variables.
func LoadPostgresConfigFromEnvironment(environment map[string]string) (PostgresConfig, error) {
	return loadPostgresConfig(env.Options{Environment: environment})
}

func loadPostgresConfig(options env.Options) (PostgresConfig, error) {
	cfg, err := env.ParseAsWithOptions[PostgresConfig](options)
	if err != nil {
		return PostgresConfig{}, errors.Join(ErrInvalidPostgresConfig, err)
	}

	if err = cfg.Validate(); err != nil {
		return PostgresConfig{}, err
	}

	return cfg, nil
}

// Enabled reports whether a database is configured.
func (c PostgresConfig) Enabled() bool {
	return c.DSN != ""
}

// Validate checks the adapter name and the pool bounds.
func (c PostgresConfig) Validate() error {
	switch c.Adapter {
	case AdapterPGX, AdapterSQL, AdapterSQLX:
	default:
		return fmt.Errorf("%w: %w: %q", ErrInvalidPostgresConfig, ErrUnknownAdapter, c.Adapter)
	}

	if c.MaxConns <= 0 || c.MinConns < 0 || c.MinConns > c.MaxConns {
		return fmt.Errorf("%w: connection bounds min=%d max=%d", ErrInvalidPostgresConfig, c.MinConns, c.MaxConns)
	}

	return nil
}
