package config

import (
	"context"
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ErrInvalidObservabilityConfig is returned when the OpenTelemetry settings cannot be used.
var ErrInvalidObservabilityConfig = errors.New("invalid observability config")

// ObservabilityConfig holds the OpenTelemetry export settings.
type ObservabilityConfig struct {
	Enabled        bool          `env:"TICKETSIM_OTEL_ENABLED"         envDefault:"false"`
	Endpoint       string        `env:"TICKETSIM_OTEL_ENDPOINT"        envDefault:"http://localhost:4318"`
	ServiceName    string        `env:"TICKETSIM_OTEL_SERVICE_NAME"    envDefault:"ticketsim"`
	ServiceVersion string        `env:"TICKETSIM_OTEL_SERVICE_VERSION" envDefault:"dev"`
	MetricInterval time.Duration `env:"TICKETSIM_OTEL_METRIC_INTERVAL" envDefault:"5s"`
}

// LoadObservabilityConfigFromEnv reads an ObservabilityConfig from the process environment.
func LoadObservabilityConfigFromEnv() (ObservabilityConfig, error) {
	return loadObservabilityConfig(env.Options{})
}

// LoadObservabilityConfigFromEnvironment reads an ObservabilityConfig from the given variables.
func LoadObservabilityConfigFromEnvironment(environment map[string]string) (ObservabilityConfig, error) {
	return loadObservabilityConfig(env.Options{Environment: environment})
}

func loadObservabilityConfig(options env.Options) (ObservabilityConfig, error) {
	cfg, err := env.ParseAsWithOptions[ObservabilityConfig](options)
	if err != nil {
		return ObservabilityConfig{}, errors.Join(ErrInvalidObservabilityConfig, err)
	}

	if cfg.Enabled && (cfg.Endpoint == "" || cfg.ServiceName == "" || cfg.MetricInterval <= 0) {
		return ObservabilityConfig{}, ErrInvalidObservabilityConfig
	}

	return cfg, nil
}

// ObservabilityProviders holds the OpenTelemetry providers of one process.
// With export disabled it hands out no-op tracers and meters and Shutdown does nothing.
type ObservabilityProviders struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	serviceName    string
}

// NewObservabilityProviders creates OTLP/HTTP trace and metric exporters for cfg
// and installs them as the global OpenTelemetry providers.
func NewObservabilityProviders(ctx context.Context, cfg ObservabilityConfig) (*ObservabilityProviders, error) {
	if !cfg.Enabled {
		return &ObservabilityProviders{serviceName: cfg.ServiceName}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(cfg.MetricInterval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &ObservabilityProviders{
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
		serviceName:    cfg.ServiceName,
	}, nil
}

// Enabled reports whether telemetry is exported.
func (p *ObservabilityProviders) Enabled() bool {
	return p.tracerProvider != nil
}

// Tracer returns the service tracer.
func (p *ObservabilityProviders) Tracer() trace.Tracer {
	if p.tracerProvider == nil {
		return tracenoop.NewTracerProvider().Tracer(p.serviceName)
	}

	return p.tracerProvider.Tracer(p.serviceName)
}

// Meter returns the service meter.
func (p *ObservabilityProviders) Meter() metric.Meter {
	if p.meterProvider == nil {
		return noop.NewMeterProvider().Meter(p.serviceName)
	}

	return p.meterProvider.Meter(p.serviceName)
}

// Shutdown flushes and stops both providers.
func (p *ObservabilityProviders) Shutdown(ctx context.Context) error {
	if p.tracerProvider == nil {
		return nil
	}

	return errors.Join(
		p.tracerProvider.Shutdown(ctx),
		p.meterProvider.Shutdown(ctx),
	)
}
