package shell

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
)

// Logger interface for the sinks and the retry logic.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for sink and retry instrumentation.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector is used instead of MetricsCollector when the collector supports it.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// AppendsEvents is the write side of the event log.
type AppendsEvents interface {
	Append(ctx context.Context, event eventlog.StorableEvent, additionalEvents ...eventlog.StorableEvent) error
}

// QueriesEvents is the read side of the event log.
type QueriesEvents interface {
	Query(ctx context.Context, filter eventlog.Filter) (
		eventlog.StorableEvents,
		eventlog.MaxSequenceNumberUint,
		error,
	)
}

// SavesSnapshots stores run-level snapshots.
type SavesSnapshots interface {
	SaveSnapshot(ctx context.Context, snapshot eventlog.Snapshot) error
}

// LoadsSnapshots reads run-level snapshots.
type LoadsSnapshots interface {
	LoadSnapshot(ctx context.Context, runID uuid.UUID, kind string) (eventlog.Snapshot, error)
}
