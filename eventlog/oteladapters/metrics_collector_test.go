package oteladapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog/oteladapters"
)

func newTestCollector() (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics), "Failed to collect metrics")

	return resourceMetrics
}

func findMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m
			}
		}
	}

	require.Failf(t, "metric not found", "metric %s was not recorded", name)

	return metricdata.Metrics{}
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	// arrange
	collector, reader := newTestCollector()
	labels := map[string]string{"operation": "query", "status": "success"}

	// act
	collector.RecordDuration("eventlog_query_duration_seconds", 150*time.Millisecond, labels)

	// assert
	m := findMetric(t, collect(t, reader), "eventlog_query_duration_seconds")
	histogram, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, "s", m.Unit)
	assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.15, histogram.DataPoints[0].Sum, 0.001)

	expectedAttrs := attribute.NewSet(attribute.String("operation", "query"), attribute.String("status", "success"))
	assert.True(t, histogram.DataPoints[0].Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	// arrange
	collector, reader := newTestCollector()
	labels := map[string]string{"vip": "true"}

	// act
	collector.IncrementCounter("ticketpool_tickets_sold_total", labels)
	collector.IncrementCounter("ticketpool_tickets_sold_total", labels)
	collector.IncrementCounterContext(context.Background(), "ticketpool_tickets_sold_total", labels)

	// assert
	m := findMetric(t, collect(t, reader), "ticketpool_tickets_sold_total")
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
	assert.True(t, sum.IsMonotonic)
	assert.Equal(t, "{ticket}", m.Unit)
}

func Test_MetricsCollector_RecordValue_KeepsLastValue(t *testing.T) {
	// arrange
	collector, reader := newTestCollector()

	// act
	collector.RecordValue("ticketpool_tickets_available", 4, nil)
	collector.RecordValueContext(context.Background(), "ticketpool_tickets_available", 2, nil)

	// assert
	m := findMetric(t, collect(t, reader), "ticketpool_tickets_available")
	gauge, ok := m.Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 2.0, gauge.DataPoints[0].Value, 0.0001)
}

func Test_MetricsCollector_NilMeter(t *testing.T) {
	collector := oteladapters.NewMetricsCollector(nil)

	assert.NotPanics(t, func() {
		collector.RecordDuration("d", time.Second, nil)
		collector.IncrementCounter("c", nil)
		collector.RecordValue("v", 1, nil)
	})
}

func Test_MetricsCollector_ConcurrentUse(t *testing.T) {
	// arrange
	collector, reader := newTestCollector()
	var wg sync.WaitGroup

	// act
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter("ticketpool_tickets_produced_total", nil)
		}()
	}
	wg.Wait()

	// assert
	m := findMetric(t, collect(t, reader), "ticketpool_tickets_produced_total")
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(20), sum.DataPoints[0].Value)
}
