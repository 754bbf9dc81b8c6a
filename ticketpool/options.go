package ticketpool

import (
	"errors"
	"time"
)

var (
	// ErrNilEventSink is returned when WithEventSink receives nil.
	ErrNilEventSink = errors.New("event sink must not be nil")

	// ErrNilMetricsCollector is returned when WithMetrics receives nil.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrNilClock is returned when WithClock receives nil.
	ErrNilClock = errors.New("clock must not be nil")
)

// Logger interface for debug output about rejected pool calls and operational messages.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for collecting pool throughput and backpressure metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// Option defines a functional option for configuring a Pool.
type Option func(*Pool) error

// WithEventSink sets the sink that receives produced and sold events.
func WithEventSink(sink EventSink) Option {
	return func(p *Pool) error {
		if sink == nil {
			return ErrNilEventSink
		}

		p.sink = sink

		return nil
	}
}

// WithMetrics sets the metrics collector for the Pool.
func WithMetrics(collector MetricsCollector) Option {
	return func(p *Pool) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		p.metricsCollector = collector

		return nil
	}
}

// WithLogger sets the logger for the Pool.
// Rejected adds and empty removes are logged at debug level.
func WithLogger(logger Logger) Option {
	return func(p *Pool) error {
		p.logger = logger
		return nil
	}
}

// WithClock replaces time.Now for ticket creation and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) error {
		if now == nil {
			return ErrNilClock
		}

		p.now = now

		return nil
	}
}
