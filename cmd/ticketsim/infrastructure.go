package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog/oteladapters"
	"github.com/ticketpool/ticketpool-simulation-go/eventlog/postgresengine"
	"github.com/ticketpool/ticketpool-simulation-go/shell"
	"github.com/ticketpool/ticketpool-simulation-go/shell/config"
	"github.com/ticketpool/ticketpool-simulation-go/simulation"
)

const (
	shutdownTimeout = 10 * time.Second
	sinkCloseBudget = 30 * time.Second
)

// infrastructure holds everything a command needs besides the simulation itself.
type infrastructure struct {
	logger    *slog.Logger
	metrics   *oteladapters.MetricsCollector
	providers *config.ObservabilityProviders
	postgres  config.PostgresConfig
	eventLog  *config.EventLogHandle
	eventSink *shell.EventLogSink
}

func setupInfrastructure(ctx context.Context, logOut io.Writer) (*infrastructure, error) {
	loggingConfig, err := config.LoadLoggingConfigFromEnv()
	if err != nil {
		return nil, err
	}

	logger, err := loggingConfig.NewLogger(logOut)
	if err != nil {
		return nil, err
	}

	observabilityConfig, err := config.LoadObservabilityConfigFromEnv()
	if err != nil {
		return nil, err
	}

	providers, err := config.NewObservabilityProviders(ctx, observabilityConfig)
	if err != nil {
		return nil, fmt.Errorf("setting up opentelemetry: %w", err)
	}

	postgresConfig, err := config.LoadPostgresConfigFromEnv()
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, err
	}

	return &infrastructure{
		logger:    logger,
		metrics:   oteladapters.NewMetricsCollector(providers.Meter()),
		providers: providers,
		postgres:  postgresConfig,
	}, nil
}

// openEventLog connects to Postgres. It is a no-op returning false when no DSN is configured.
func (i *infrastructure) openEventLog(ctx context.Context) (bool, error) {
	if !i.postgres.Enabled() {
		return false, nil
	}

	handle, err := config.OpenEventLog(ctx, i.postgres,
		postgresengine.WithLogger(i.logger),
		postgresengine.WithContextualLogger(oteladapters.NewSlogBridgeLoggerWithHandler(i.logger.Handler())),
		postgresengine.WithMetrics(i.metrics),
		postgresengine.WithTracing(oteladapters.NewTracingCollector(i.providers.Tracer())),
	)
	if err != nil {
		return false, fmt.Errorf("opening event log: %w", err)
	}

	i.eventLog = handle

	return true, nil
}

// requireEventLog is openEventLog for commands that cannot work without a database.
func (i *infrastructure) requireEventLog(ctx context.Context) (*postgresengine.EventLog, error) {
	enabled, err := i.openEventLog(ctx)
	if err != nil {
		return nil, err
	}

	if !enabled {
		return nil, config.ErrPostgresNotConfigured
	}

	return i.eventLog.EventLog, nil
}

// coordinatorOptions wires logging, metrics and, with a database, event persistence and run summaries.
func (i *infrastructure) coordinatorOptions(reporter simulation.StatisticsReporter) ([]simulation.CoordinatorOption, error) {
	sinks := shell.MultiSinkProvider{shell.NewLogSink(i.logger)}

	options := []simulation.CoordinatorOption{
		simulation.WithLogger(i.logger),
		simulation.WithMetrics(i.metrics),
	}

	if reporter != nil {
		options = append(options, simulation.WithStatisticsReporter(reporter))
	}

	if i.eventLog != nil {
		eventSink, err := shell.NewEventLogSink(i.eventLog.EventLog,
			shell.WithSinkLogger(i.logger),
			shell.WithSinkMetrics(i.metrics),
		)
		if err != nil {
			return nil, err
		}

		recorder, err := shell.NewRunSummaryRecorder(i.eventLog.EventLog)
		if err != nil {
			return nil, err
		}

		i.eventSink = eventSink
		sinks = append(sinks, eventSink)
		options = append(options, simulation.WithRunRecorder(recorder))
	}

	return append(options, simulation.WithSinkProvider(sinks)), nil
}

// Close flushes the event sink and releases connections and telemetry exporters.
func (i *infrastructure) Close() error {
	var errs []error

	if i.eventSink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkCloseBudget)
		errs = append(errs, i.eventSink.Close(ctx))
		cancel()
	}

	if i.eventLog != nil {
		errs = append(errs, i.eventLog.Close())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs = append(errs, i.providers.Shutdown(ctx))

	return errors.Join(errs...)
}
