// Package postgresengine provides the PostgreSQL implementation of the ticket event log.
//
// It supports three connection types through internal adapters:
//   - pgx/v5 connection pools (NewEventLogFromPGXPool, NewEventLogFromPGXPoolAndReplica)
//   - database/sql with lib/pq (NewEventLogFromSQLDB)
//   - sqlx (NewEventLogFromSQLX)
//
// SQL is built with goqu for the postgres dialect and executed as interpolated statements.
// Events land in an append-only table with a BIGSERIAL sequence number and JSONB payloads;
// run snapshots land in a second table keyed by (run_id, kind).
//
// Example:
//
//	pool, _ := pgxpool.New(ctx, dsn)
//	log, err := postgresengine.NewEventLogFromPGXPool(pool,
//		postgresengine.WithLogger(slogger),
//		postgresengine.WithMetrics(metrics),
//	)
//	if err != nil {
//		return err
//	}
//
//	if err := log.EnsureSchema(ctx); err != nil {
//		return err
//	}
//
// Observability is optional. Logger, ContextualLogger, MetricsCollector and TracingCollector
// are interfaces defined in the eventlog package; oteladapters binds them to OpenTelemetry.
package postgresengine
