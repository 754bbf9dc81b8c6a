package postgresengine

import (
	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
)

// Option defines a functional option for configuring EventLog.
type Option func(*EventLog) error

// WithEventTableName sets the events table name.
func WithEventTableName(tableName string) Option {
	return func(el *EventLog) error {
		if tableName == "" {
			return eventlog.ErrEmptyTableNameSupplied
		}

		el.eventTableName = tableName

		return nil
	}
}

// WithSnapshotTableName sets the snapshots table name.
func WithSnapshotTableName(tableName string) Option {
	return func(el *EventLog) error {
		if tableName == "" {
			return eventlog.ErrEmptyTableNameSupplied
		}

		el.snapshotTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the EventLog.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: Event counts and durations (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Failures that cause an operation to fail.
func WithLogger(logger eventlog.Logger) Option {
	return func(el *EventLog) error {
		el.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger for the EventLog.
// When set, it receives the same messages as the Logger with the operation's context,
// which lets trace and span ids be correlated automatically.
func WithContextualLogger(logger eventlog.ContextualLogger) Option {
	return func(el *EventLog) error {
		el.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the EventLog.
// It receives operation durations, event counts and database errors.
func WithMetrics(collector eventlog.MetricsCollector) Option {
	return func(el *EventLog) error {
		el.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the EventLog.
// Every operation runs inside a span that ends with a success or error status.
func WithTracing(collector eventlog.TracingCollector) Option {
	return func(el *EventLog) error {
		el.tracingCollector = collector
		return nil
	}
}
