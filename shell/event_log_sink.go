package shell

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/google/uuid"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
	"github.com/ticketpool/ticketpool-simulation-go/ticketpool"
)

const (
	defaultMaxBatchSize = 100
	defaultMaxRequeues  = 3

	// SinkBatchesWrittenMetric counts batches appended to the event log.
	SinkBatchesWrittenMetric = "eventlog_sink_batches_written_total"

	// SinkBatchesFailedMetric counts batches that could not be appended after all retries.
	SinkBatchesFailedMetric = "eventlog_sink_batches_failed_total"

	// SinkBatchesRequeuedMetric counts failed batches put back at the end of the queue.
	SinkBatchesRequeuedMetric = "eventlog_sink_batches_requeued_total"

	// SinkEventsRejectedMetric counts events that could not be mapped or arrived after Close.
	SinkEventsRejectedMetric = "eventlog_sink_events_rejected_total"

	// SinkBatchSizeMetric records the size of each written batch.
	SinkBatchSizeMetric = "eventlog_sink_batch_size"

	// SinkQueueDepthMetric records the number of queued events after each enqueue.
	SinkQueueDepthMetric = "eventlog_sink_queue_depth"

	// SinkAppendDurationMetric records how long a batch took to append, retries included.
	SinkAppendDurationMetric = "eventlog_sink_append_duration_seconds"

	operationAppendEvents = "append_events"
	labelReason           = "reason"
	reasonMapping         = "mapping"
	reasonClosed          = "closed"
	reasonCanceled        = "canceled"

	logMsgBatchAppended  = "event log sink: batch appended"
	logMsgBatchFailed    = "event log sink: batch could not be appended, events lost"
	logMsgBatchRequeued  = "event log sink: batch could not be appended, requeued"
	logMsgMappingFailed  = "event log sink: pool event could not be mapped"
	logMsgEmitAfterClose = "event log sink: event emitted after close, event lost"
	logMsgFlushAborted   = "event log sink: close deadline reached, queued events lost"
	logAttrRunID         = "run_id"
	logAttrTicketID      = "ticket_id"
	logAttrKind          = "kind"
	logAttrEventCount    = "event_count"
	logAttrAttempts      = "attempts"
	logAttrRequeues      = "requeues"
	logAttrDurationMS    = "duration_ms"
	logAttrError         = "error"
)

var (
	// ErrNilAppender is returned when NewEventLogSink receives nil.
	ErrNilAppender = errors.New("event appender must not be nil")

	// ErrInvalidMaxBatchSize is returned when the batch size is not positive.
	ErrInvalidMaxBatchSize = errors.New("max batch size must be positive")

	// ErrInvalidMaxRequeues is returned when the requeue limit is negative.
	ErrInvalidMaxRequeues = errors.New("max requeues must not be negative")
)

// EventLogSinkOption defines a functional option for configuring an EventLogSink.
type EventLogSinkOption func(*EventLogSink) error

// WithSinkLogger sets the logger for the EventLogSink.
func WithSinkLogger(logger Logger) EventLogSinkOption {
	return func(s *EventLogSink) error {
		s.logger = logger
		return nil
	}
}

// WithSinkMetrics sets the metrics collector for the EventLogSink and its retries.
func WithSinkMetrics(collector MetricsCollector) EventLogSinkOption {
	return func(s *EventLogSink) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		s.metricsCollector = collector
		s.retryOptions = append(s.retryOptions, WithRetryMetrics(collector, operationAppendEvents))

		return nil
	}
}

// WithSinkMaxBatchSize bounds the number of events per INSERT. Default: 100.
func WithSinkMaxBatchSize(size int) EventLogSinkOption {
	return func(s *EventLogSink) error {
		if size <= 0 {
			return ErrInvalidMaxBatchSize
		}

		s.maxBatchSize = size

		return nil
	}
}

// WithSinkMaxRequeues bounds how often an event whose batch exhausted its retries is put back
// at the end of the queue before it counts as lost. Zero disables requeueing. Default: 3.
func WithSinkMaxRequeues(requeues int) EventLogSinkOption {
	return func(s *EventLogSink) error {
		if requeues < 0 {
			return ErrInvalidMaxRequeues
		}

		s.maxRequeues = requeues

		return nil
	}
}

// WithSinkRetryOptions configures the backoff used for failed appends.
func WithSinkRetryOptions(options ...RetryOption) EventLogSinkOption {
	return func(s *EventLogSink) error {
		s.retryOptions = append(s.retryOptions, options...)
		return nil
	}
}

type queuedEvent struct {
	event    ticketpool.Event
	metadata EventMetadata
	requeues int
}

// EventLogSink persists pool events to the event log.
//
// Emit only enqueues, it never blocks on I/O and never fails. The queue is unbounded.
// A single writer goroutine appends queued events in batches, retrying transient failures
// with exponential backoff. When a transient failure outlasts the retries, the batch goes back to the
// end of the queue, up to a per-event requeue limit. Requeued events may be written after events
// emitted later; their metadata sequence keeps the emit order. Events past the limit, or hit by a
// permanent failure, are logged and counted as lost; the pool never notices.
type EventLogSink struct {
	appender         AppendsEvents
	logger           Logger
	metricsCollector MetricsCollector
	maxBatchSize     int
	maxRequeues      int
	retryOptions     []RetryOption

	mu     sync.Mutex
	queue  *linkedlistqueue.Queue
	closed bool

	wake      chan struct{}
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	ctx       context.Context //nolint:containedctx // lifetime of the writer goroutine
	cancel    context.CancelFunc
}

// NewEventLogSink creates the sink and starts its writer goroutine. Call Close to flush and stop it.
func NewEventLogSink(appender AppendsEvents, options ...EventLogSinkOption) (*EventLogSink, error) {
	if appender == nil {
		return nil, ErrNilAppender
	}

	s := &EventLogSink{
		appender:     appender,
		maxBatchSize: defaultMaxBatchSize,
		maxRequeues:  defaultMaxRequeues,
		queue:        linkedlistqueue.New(),
		wake:         make(chan struct{}, 1),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	go s.run()

	return s, nil
}

// SinkForRun returns the ticketpool.EventSink for one run. Its events carry the run id and a per-run sequence.
func (s *EventLogSink) SinkForRun(runID uuid.UUID) ticketpool.EventSink {
	return &runEventLogSink{parent: s, runID: runID}
}

// Pending returns the number of events that are queued but not yet written.
func (s *EventLogSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queue.Size()
}

// Close stops accepting events and waits until all queued events are written.
// When ctx ends first, the write in progress is canceled, the remaining events are dropped
// and ctx.Err() is returned. Close is idempotent.
func (s *EventLogSink) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.closing)
	})

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.cancel()
		<-s.done

		return ctx.Err()
	}
}

func (s *EventLogSink) enqueue(item queuedEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.incrementCounter(SinkEventsRejectedMetric, map[string]string{labelReason: reasonClosed})
		s.logWarn(logMsgEmitAfterClose,
			logAttrRunID, item.metadata.RunID,
			logAttrKind, string(item.event.Kind),
			logAttrTicketID, item.event.TicketID)

		return
	}

	s.queue.Enqueue(item)
	depth := s.queue.Size()
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	if s.metricsCollector != nil {
		s.metricsCollector.RecordValue(SinkQueueDepthMetric, float64(depth), nil)
	}
}

func (s *EventLogSink) run() {
	defer close(s.done)
	defer s.cancel()

	for {
		select {
		case <-s.wake:
			s.drain()

		case <-s.closing:
			s.drain()
			return
		}
	}
}

// drain writes batches until the queue is empty.
func (s *EventLogSink) drain() {
	for {
		if s.ctx.Err() != nil {
			s.discardQueued()
			return
		}

		batch := s.nextBatch()
		if len(batch) == 0 {
			return
		}

		s.write(batch)
	}
}

func (s *EventLogSink) nextBatch() []queuedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]queuedEvent, 0, min(s.queue.Size(), s.maxBatchSize))
	for len(batch) < s.maxBatchSize {
		value, ok := s.queue.Dequeue()
		if !ok {
			break
		}

		batch = append(batch, value.(queuedEvent)) //nolint:forcetypeassert // the queue only ever holds queuedEvent values
	}

	return batch
}

func (s *EventLogSink) requeue(items []queuedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		item.requeues++
		s.queue.Enqueue(item)
	}
}

func (s *EventLogSink) discardQueued() {
	s.mu.Lock()
	lost := s.queue.Size()
	s.queue.Clear()
	s.mu.Unlock()

	if lost == 0 {
		return
	}

	for range lost {
		s.incrementCounter(SinkEventsRejectedMetric, map[string]string{labelReason: reasonCanceled})
	}

	s.logError(logMsgFlushAborted, logAttrEventCount, lost)
}

func (s *EventLogSink) write(batch []queuedEvent) {
	events := make(eventlog.StorableEvents, 0, len(batch))
	mapped := make([]queuedEvent, 0, len(batch))

	for _, item := range batch {
		storableEvent, err := StorableEventFrom(item.event, item.metadata)
		if err != nil {
			s.incrementCounter(SinkEventsRejectedMetric, map[string]string{labelReason: reasonMapping})
			s.logError(logMsgMappingFailed,
				logAttrRunID, item.metadata.RunID,
				logAttrKind, string(item.event.Kind),
				logAttrError, err.Error())

			continue
		}

		events = append(events, storableEvent)
		mapped = append(mapped, item)
	}

	if len(events) == 0 {
		return
	}

	start := time.Now()
	meta, err := RetryWithExponentialBackoff(s.ctx, func(ctx context.Context) error {
		return s.appender.Append(ctx, events[0], events[1:]...)
	}, s.retryOptions...)
	duration := time.Since(start)

	if err != nil {
		s.handleFailedBatch(mapped, meta, err)
		return
	}

	s.incrementCounter(SinkBatchesWrittenMetric, nil)

	if s.metricsCollector != nil {
		s.metricsCollector.RecordValue(SinkBatchSizeMetric, float64(len(events)), nil)
		s.metricsCollector.RecordDuration(SinkAppendDurationMetric, duration, nil)
	}

	if s.logger != nil {
		s.logger.Debug(logMsgBatchAppended,
			logAttrEventCount, len(events),
			logAttrAttempts, meta.Attempts,
			logAttrDurationMS, duration.Milliseconds())
	}
}

// handleFailedBatch requeues the events that may still be retried and reports the rest as lost.
func (s *EventLogSink) handleFailedBatch(items []queuedEvent, meta RetryMetadata, err error) {
	var retryable, lost []queuedEvent

	if isRetryableError(err) && s.ctx.Err() == nil {
		for _, item := range items {
			if item.requeues < s.maxRequeues {
				retryable = append(retryable, item)
			} else {
				lost = append(lost, item)
			}
		}
	} else {
		lost = items
	}

	if len(retryable) > 0 {
		s.requeue(retryable)
		s.incrementCounter(SinkBatchesRequeuedMetric, nil)
		s.logWarn(logMsgBatchRequeued,
			logAttrEventCount, len(retryable),
			logAttrAttempts, meta.Attempts,
			logAttrRequeues, retryable[0].requeues+1,
			logAttrError, err.Error())
	}

	if len(lost) > 0 {
		s.incrementCounter(SinkBatchesFailedMetric, nil)
		s.logError(logMsgBatchFailed,
			logAttrEventCount, len(lost),
			logAttrAttempts, meta.Attempts,
			logAttrRequeues, lost[0].requeues,
			logAttrError, err.Error())
	}
}

func (s *EventLogSink) incrementCounter(metric string, labels map[string]string) {
	if s.metricsCollector != nil {
		s.metricsCollector.IncrementCounter(metric, labels)
	}
}

func (s *EventLogSink) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *EventLogSink) logError(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}

// runEventLogSink stamps events with their run before handing them to the shared queue.
type runEventLogSink struct {
	parent   *EventLogSink
	runID    uuid.UUID
	sequence atomic.Uint64
}

func (r *runEventLogSink) Emit(event ticketpool.Event) {
	r.parent.enqueue(queuedEvent{
		event:    event,
		metadata: BuildEventMetadata(r.runID, r.sequence.Add(1)),
	})
}
