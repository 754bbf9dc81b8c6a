// Package oteladapters binds the dependency-free observability interfaces of the event log,
// the ticket pool and the simulation to OpenTelemetry.
//
//   - MetricsCollector maps RecordDuration, IncrementCounter and RecordValue to histograms,
//     counters and gauges of an OpenTelemetry meter.
//   - TracingCollector maps spans to an OpenTelemetry tracer.
//   - SlogBridgeLogger and OTelLogger implement the contextual logger interface with trace correlation.
package oteladapters
