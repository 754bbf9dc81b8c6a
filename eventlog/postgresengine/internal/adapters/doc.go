// Package adapters provides database adapter implementations for the PostgreSQL event log.
//
// The event log accepts pgxpool.Pool, sql.DB and sqlx.DB connections. Each adapter wraps
// one of them behind the DBAdapter interface so the engine builds and executes plain SQL
// strings without knowing which driver is underneath.
package adapters
