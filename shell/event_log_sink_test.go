package shell_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
	"github.com/ticketpool/ticketpool-simulation-go/shell"
	"github.com/ticketpool/ticketpool-simulation-go/testutil/helper"
	"github.com/ticketpool/ticketpool-simulation-go/ticketpool"
)

type appenderSpy struct {
	mu          sync.Mutex
	batches     []eventlog.StorableEvents
	failuresMax int
	failures    int
	failWith    error
	block       chan struct{}
	canceled    bool
}

func (a *appenderSpy) Append(ctx context.Context, event eventlog.StorableEvent, additionalEvents ...eventlog.StorableEvent) error {
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			a.mu.Lock()
			a.canceled = true
			a.mu.Unlock()

			return errors.Join(eventlog.ErrAppendingEventFailed, ctx.Err())
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failures < a.failuresMax {
		a.failures++
		return a.failWith
	}

	a.batches = append(a.batches, append(eventlog.StorableEvents{event}, additionalEvents...))

	return nil
}

func (a *appenderSpy) appended() eventlog.StorableEvents {
	a.mu.Lock()
	defer a.mu.Unlock()

	var all eventlog.StorableEvents
	for _, batch := range a.batches {
		all = append(all, batch...)
	}

	return all
}

func (a *appenderSpy) batchSizes() []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	sizes := make([]int, 0, len(a.batches))
	for _, batch := range a.batches {
		sizes = append(sizes, len(batch))
	}

	return sizes
}

func givenEventLogSink(t *testing.T, appender shell.AppendsEvents, options ...shell.EventLogSinkOption) *shell.EventLogSink {
	t.Helper()

	options = append(options, shell.WithSinkRetryOptions(shell.WithBaseDelay(time.Millisecond)))
	sink, err := shell.NewEventLogSink(appender, options...)
	require.NoError(t, err, "error in arranging test data")

	return sink
}

func closeWithin(t *testing.T, sink *shell.EventLogSink, timeout time.Duration) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return sink.Close(ctx)
}

func producedEvent(ticketID uint64) ticketpool.Event {
	return ticketpool.Event{
		Kind:       ticketpool.EventKindProduced,
		TicketID:   ticketID,
		ActorID:    "vendor-1",
		OccurredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func Test_NewEventLogSink_RejectsInvalidArguments(t *testing.T) {
	_, errNilAppender := shell.NewEventLogSink(nil)
	_, errBatchSize := shell.NewEventLogSink(&appenderSpy{}, shell.WithSinkMaxBatchSize(0))
	_, errMetrics := shell.NewEventLogSink(&appenderSpy{}, shell.WithSinkMetrics(nil))
	_, errRequeues := shell.NewEventLogSink(&appenderSpy{}, shell.WithSinkMaxRequeues(-1))

	assert.ErrorIs(t, errNilAppender, shell.ErrNilAppender)
	assert.ErrorIs(t, errBatchSize, shell.ErrInvalidMaxBatchSize)
	assert.ErrorIs(t, errMetrics, shell.ErrNilMetricsCollector)
	assert.ErrorIs(t, errRequeues, shell.ErrInvalidMaxRequeues)
}

func Test_EventLogSink_WritesAllEventsWithRunMetadata(t *testing.T) {
	// arrange
	appender := &appenderSpy{}
	sink := givenEventLogSink(t, appender)
	runID := uuid.New()
	runSink := sink.SinkForRun(runID)

	// act
	runSink.Emit(producedEvent(1))
	runSink.Emit(producedEvent(2))
	runSink.Emit(ticketpool.Event{Kind: ticketpool.EventKindSold, TicketID: 2, ActorID: "customer-1", VIP: true})
	require.NoError(t, closeWithin(t, sink, 5*time.Second))

	// assert
	events := appender.appended()
	require.Len(t, events, 3)
	assert.Equal(t, shell.TicketProducedEventType, events[0].EventType)
	assert.Equal(t, shell.TicketSoldEventType, events[2].EventType)

	for i, event := range events {
		metadata, err := shell.EventMetadataFrom(event)
		require.NoError(t, err)
		assert.Equal(t, runID.String(), metadata.RunID)
		assert.Equal(t, uint64(i+1), metadata.Sequence)
	}

	assert.Zero(t, sink.Pending())
}

func Test_EventLogSink_SplitsIntoBatches(t *testing.T) {
	// arrange
	appender := &appenderSpy{block: make(chan struct{})}
	sink := givenEventLogSink(t, appender, shell.WithSinkMaxBatchSize(2))
	runSink := sink.SinkForRun(uuid.New())

	// act
	for id := uint64(1); id <= 5; id++ {
		runSink.Emit(producedEvent(id))
	}
	close(appender.block)
	require.NoError(t, closeWithin(t, sink, 5*time.Second))

	// assert
	assert.Len(t, appender.appended(), 5)
	for _, size := range appender.batchSizes() {
		assert.LessOrEqual(t, size, 2)
	}
}

func Test_EventLogSink_EmitDoesNotBlockOnSlowAppends(t *testing.T) {
	// arrange
	appender := &appenderSpy{block: make(chan struct{})}
	sink := givenEventLogSink(t, appender)
	runSink := sink.SinkForRun(uuid.New())

	// act
	emitted := make(chan struct{})
	go func() {
		defer close(emitted)
		for id := uint64(1); id <= 1000; id++ {
			runSink.Emit(producedEvent(id))
		}
	}()

	// assert
	select {
	case <-emitted:
	case <-time.After(5 * time.Second):
		t.Fatal("Emit blocked while the appender was stuck")
	}

	assert.Positive(t, sink.Pending())

	close(appender.block)
	require.NoError(t, closeWithin(t, sink, 5*time.Second))
	assert.Len(t, appender.appended(), 1000)
}

func Test_EventLogSink_RetriesTransientFailures(t *testing.T) {
	// arrange
	appender := &appenderSpy{failuresMax: 2, failWith: errors.Join(eventlog.ErrAppendingEventFailed, errors.New("connection reset"))}
	metrics := helper.NewMetricsCollectorSpy(true)
	sink := givenEventLogSink(t, appender, shell.WithSinkMetrics(metrics))

	// act
	sink.SinkForRun(uuid.New()).Emit(producedEvent(1))
	require.NoError(t, closeWithin(t, sink, 5*time.Second))

	// assert
	assert.Len(t, appender.appended(), 1)
	assert.Equal(t, 2, metrics.CountCounterIncrements(shell.RetriesMetric, map[string]string{"operation": "append_events"}))
	assert.Equal(t, 1, metrics.CountCounterIncrements(shell.SinkBatchesWrittenMetric, nil))
	assert.True(t, metrics.HasValueRecordForMetric(shell.SinkQueueDepthMetric).Assert())
}

func Test_EventLogSink_LogsBatchesThatStillFail(t *testing.T) {
	// arrange
	appender := &appenderSpy{failuresMax: 100, failWith: errors.New("syntax error")}
	metrics := helper.NewMetricsCollectorSpy(true)
	logger, logSpy := helper.NewSpyLogger()
	sink := givenEventLogSink(t, appender, shell.WithSinkMetrics(metrics), shell.WithSinkLogger(logger))

	// act
	sink.SinkForRun(uuid.New()).Emit(producedEvent(1))
	err := closeWithin(t, sink, 5*time.Second)

	// assert
	assert.NoError(t, err)
	assert.Empty(t, appender.appended())
	assert.Equal(t, 1, metrics.CountCounterIncrements(shell.SinkBatchesFailedMetric, nil))
	assert.True(t, logSpy.HasErrorLogWithMessage("event log sink: batch could not be appended, events lost").
		WithAttrValue("error", "syntax error").
		WithAttrValue("attempts", "1").Assert())
}

func Test_EventLogSink_RequeuesBatchesThatOutlastTheRetries(t *testing.T) {
	// arrange
	appender := &appenderSpy{failuresMax: 5, failWith: errors.Join(eventlog.ErrAppendingEventFailed, errors.New("connection reset"))}
	metrics := helper.NewMetricsCollectorSpy(true)
	logger, logSpy := helper.NewSpyLogger()
	sink := givenEventLogSink(t, appender,
		shell.WithSinkMetrics(metrics),
		shell.WithSinkLogger(logger),
		shell.WithSinkRetryOptions(shell.WithMaxAttempts(2)))

	// act
	sink.SinkForRun(uuid.New()).Emit(producedEvent(1))
	require.NoError(t, closeWithin(t, sink, 5*time.Second))

	// assert
	events := appender.appended()
	require.Len(t, events, 1)
	metadata, err := shell.EventMetadataFrom(events[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(1), metadata.Sequence)

	assert.Equal(t, 2, metrics.CountCounterIncrements(shell.SinkBatchesRequeuedMetric, nil))
	assert.Equal(t, 0, metrics.CountCounterIncrements(shell.SinkBatchesFailedMetric, nil))
	assert.True(t, logSpy.HasWarnLogWithMessage("event log sink: batch could not be appended, requeued").
		WithAttrValue("requeues", "1").
		WithAttrValue("attempts", "2").Assert())
}

func Test_EventLogSink_DropsEventsPastTheRequeueLimit(t *testing.T) {
	// arrange
	appender := &appenderSpy{failuresMax: 100, failWith: errors.Join(eventlog.ErrAppendingEventFailed, errors.New("connection reset"))}
	metrics := helper.NewMetricsCollectorSpy(true)
	logger, logSpy := helper.NewSpyLogger()
	sink := givenEventLogSink(t, appender,
		shell.WithSinkMetrics(metrics),
		shell.WithSinkLogger(logger),
		shell.WithSinkMaxRequeues(2),
		shell.WithSinkRetryOptions(shell.WithMaxAttempts(1)))

	// act
	sink.SinkForRun(uuid.New()).Emit(producedEvent(1))
	err := closeWithin(t, sink, 5*time.Second)

	// assert
	assert.NoError(t, err)
	assert.Empty(t, appender.appended())
	assert.Zero(t, sink.Pending())
	assert.Equal(t, 2, metrics.CountCounterIncrements(shell.SinkBatchesRequeuedMetric, nil))
	assert.Equal(t, 1, metrics.CountCounterIncrements(shell.SinkBatchesFailedMetric, nil))
	assert.True(t, logSpy.HasErrorLogWithMessage("event log sink: batch could not be appended, events lost").
		WithAttrValue("requeues", "2").
		WithAttrValue("event_count", "1").Assert())
}

func Test_EventLogSink_RejectsEventsAfterClose(t *testing.T) {
	// arrange
	appender := &appenderSpy{}
	logger, logSpy := helper.NewSpyLogger()
	sink := givenEventLogSink(t, appender, shell.WithSinkLogger(logger))
	runSink := sink.SinkForRun(uuid.New())
	require.NoError(t, closeWithin(t, sink, 5*time.Second))

	// act
	runSink.Emit(producedEvent(1))

	// assert
	assert.Empty(t, appender.appended())
	assert.True(t, logSpy.HasWarnLogWithMessage("event log sink: event emitted after close, event lost").
		WithAttrValue("ticket_id", "1").Assert())
	assert.NoError(t, closeWithin(t, sink, time.Second))
}

func Test_EventLogSink_Close_GivesUpWhenContextEnds(t *testing.T) {
	// arrange
	appender := &appenderSpy{block: make(chan struct{})}
	sink := givenEventLogSink(t, appender)
	sink.SinkForRun(uuid.New()).Emit(producedEvent(1))

	// act
	err := closeWithin(t, sink, 20*time.Millisecond)

	// assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, appender.appended())
}
