package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ticketpool/ticketpool-simulation-go/ticketpool"
)

var (
	// ErrNilMetricsCollector is returned when WithMetrics receives nil.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrNilSinkProvider is returned when WithSinkProvider receives nil.
	ErrNilSinkProvider = errors.New("sink provider must not be nil")

	// ErrNilRunRecorder is returned when WithRunRecorder receives nil.
	ErrNilRunRecorder = errors.New("run recorder must not be nil")

	// ErrNilStatisticsReporter is returned when WithStatisticsReporter receives nil.
	ErrNilStatisticsReporter = errors.New("statistics reporter must not be nil")

	// ErrNonPositiveRecordTimeout is returned when WithRecordTimeout receives a non-positive duration.
	ErrNonPositiveRecordTimeout = errors.New("record timeout must be positive")
)

// Logger interface for lifecycle messages of the coordinator and its agents.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for run-level metrics. The same collector is handed to every pool.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// RunSinkProvider hands out the event sink for a new run.
type RunSinkProvider interface {
	SinkForRun(runID uuid.UUID) ticketpool.EventSink
}

// RunSinkProviderFunc adapts a plain function to RunSinkProvider.
type RunSinkProviderFunc func(runID uuid.UUID) ticketpool.EventSink

// SinkForRun calls f(runID).
func (f RunSinkProviderFunc) SinkForRun(runID uuid.UUID) ticketpool.EventSink {
	return f(runID)
}

// RunRecorder persists the summary of a finished run.
type RunRecorder interface {
	RecordRunFinished(ctx context.Context, summary RunSummary) error
}

// StatisticsReporter receives the periodic statistics of a running simulation and the final ones.
// It is called from the coordinator's monitor goroutine only, so calls never overlap.
// Implementations must not call Stop, which waits for that goroutine.
type StatisticsReporter interface {
	ReportStatistics(runID uuid.UUID, stats ticketpool.Statistics)
}

// StatisticsReporterFunc adapts a plain function to StatisticsReporter.
type StatisticsReporterFunc func(runID uuid.UUID, stats ticketpool.Statistics)

// ReportStatistics calls f(runID, stats).
func (f StatisticsReporterFunc) ReportStatistics(runID uuid.UUID, stats ticketpool.Statistics) {
	f(runID, stats)
}

// CoordinatorOption defines a functional option for configuring a Coordinator.
type CoordinatorOption func(*Coordinator) error

// WithLogger sets the logger for the coordinator and all agents it spawns.
func WithLogger(logger Logger) CoordinatorOption {
	return func(c *Coordinator) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the coordinator and each run's pool.
func WithMetrics(collector MetricsCollector) CoordinatorOption {
	return func(c *Coordinator) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		c.metricsCollector = collector

		return nil
	}
}

// WithSinkProvider sets where each run's pool sends its produced and sold events.
func WithSinkProvider(provider RunSinkProvider) CoordinatorOption {
	return func(c *Coordinator) error {
		if provider == nil {
			return ErrNilSinkProvider
		}

		c.sinkProvider = provider

		return nil
	}
}

// WithRunRecorder sets the recorder that receives a summary whenever a run ends.
func WithRunRecorder(recorder RunRecorder) CoordinatorOption {
	return func(c *Coordinator) error {
		if recorder == nil {
			return ErrNilRunRecorder
		}

		c.recorder = recorder

		return nil
	}
}

// WithStatisticsReporter sets the reporter for the periodic statistics.
func WithStatisticsReporter(reporter StatisticsReporter) CoordinatorOption {
	return func(c *Coordinator) error {
		if reporter == nil {
			return ErrNilStatisticsReporter
		}

		c.reporter = reporter

		return nil
	}
}

// WithRecordTimeout bounds how long the RunRecorder may take. Default: 5s.
func WithRecordTimeout(timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) error {
		if timeout <= 0 {
			return ErrNonPositiveRecordTimeout
		}

		c.recordTimeout = timeout

		return nil
	}
}
