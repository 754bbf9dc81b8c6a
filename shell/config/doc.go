// Package config builds the infrastructure of the ticket pool simulation from environment variables.
//
// It contains the Postgres connection factories for the three supported drivers (pgx.Pool, sql.DB, sqlx.DB),
// the event log constructor that picks one of them, the slog logger setup and the OpenTelemetry providers.
//
// This package is part of the shell (infrastructure) layer.
package config
