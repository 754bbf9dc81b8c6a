package shell

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 50 * time.Millisecond
	defaultJitterFactor = 0.3
)

const (
	// RetriesMetric counts retry attempts.
	//
	// Labels:
	//   - operation: what is being retried (e.g., "append_events")
	//   - attempt_number: which retry attempt (1, 2, 3, 4)
	//   - error_type: category of the error that caused the retry
	RetriesMetric = "eventlog_sink_retries_total"

	// RetryDelayMetric tracks the backoff delay before each retry.
	RetryDelayMetric = "eventlog_sink_retry_delay_seconds"

	// MaxRetriesReachedMetric counts operations that still failed after the last attempt.
	//
	// Use cases:
	//   - Alert on lost events: increase(eventlog_sink_max_retries_reached_total[5m]) > 0
	MaxRetriesReachedMetric = "eventlog_sink_max_retries_reached_total"

	labelOperation      = "operation"
	labelAttemptNumber  = "attempt_number"
	labelErrorType      = "error_type"
	labelFinalErrorType = "final_error_type"

	errorTypeNone            = "none"
	errorTypeAppendFailed    = "append_failed"
	errorTypeContextCanceled = "context_canceled"
	errorTypeContextDeadline = "context_deadline_exceeded"
	errorTypeOther           = "other"
)

var (
	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithRetryMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrEmptyOperation is returned when an empty operation name is provided to WithRetryMetrics.
	ErrEmptyOperation = errors.New("operation must not be empty")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// RetryMetadata describes how a retried call went.
type RetryMetadata struct {
	Attempts      int
	TotalDelay    time.Duration
	LastErrorType string
}

type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector MetricsCollector
	operation        string
}

// RetryWithExponentialBackoff executes fn and retries transient event log write failures.
//
// Retry Schedule (default): 0 ms, 50 ms, 100 ms, 200 ms, 400 ms (with 30% jitter)
// Total Duration: ~ 1 s worst case
//
// Only eventlog.ErrAppendingEventFailed is retried. Context cancellation and deadlines fail fast,
// as do all other errors.
func RetryWithExponentialBackoff(
	ctx context.Context,
	fn RetryableFunc,
	options ...RetryOption,
) (RetryMetadata, error) {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return RetryMetadata{}, err
		}
	}

	var (
		lastErr error
		meta    RetryMetadata
	)

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff: baseDelay * 2^(attempt-1)
			delay := config.baseDelay * time.Duration(1<<(attempt-1))

			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec // math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			recordRetryDelayMetric(ctx, config, attempt, backoffDelay)

			timer := time.NewTimer(backoffDelay)
			select {
			case <-timer.C:
				meta.TotalDelay += backoffDelay
			case <-ctx.Done():
				timer.Stop()
				meta.LastErrorType = getErrorType(ctx.Err())

				return meta, ctx.Err()
			}
		}

		meta.Attempts++

		lastErr = fn(ctx)
		if lastErr == nil {
			meta.LastErrorType = errorTypeNone
			return meta, nil
		}

		meta.LastErrorType = getErrorType(lastErr)

		if !isRetryableError(lastErr) {
			return meta, lastErr
		}

		recordRetryAttemptMetric(ctx, attempt, config, lastErr)
	}

	recordMaxRetriesReachedMetric(ctx, config, lastErr)

	return meta, lastErr
}

func recordRetryDelayMetric(ctx context.Context, config *retryConfig, attempt int, backoffDelay time.Duration) {
	if config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation:     config.operation,
		labelAttemptNumber: strconv.Itoa(attempt),
	}

	if contextualCollector, ok := config.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, RetryDelayMetric, backoffDelay, labels)
		return
	}

	config.metricsCollector.RecordDuration(RetryDelayMetric, backoffDelay, labels)
}

// recordRetryAttemptMetric only counts attempts that will actually be followed by another one.
func recordRetryAttemptMetric(ctx context.Context, attempt int, config *retryConfig, lastErr error) {
	if attempt >= config.maxAttempts-1 || config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation:     config.operation,
		labelAttemptNumber: strconv.Itoa(attempt + 1),
		labelErrorType:     getErrorType(lastErr),
	}

	if contextualCollector, ok := config.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, RetriesMetric, labels)
		return
	}

	config.metricsCollector.IncrementCounter(RetriesMetric, labels)
}

func recordMaxRetriesReachedMetric(ctx context.Context, config *retryConfig, lastErr error) {
	if config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation:      config.operation,
		labelFinalErrorType: getErrorType(lastErr),
	}

	if contextualCollector, ok := config.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, MaxRetriesReachedMetric, labels)
		return
	}

	config.metricsCollector.IncrementCounter(MaxRetriesReachedMetric, labels)
}

// isRetryableError reports whether err is a transient write failure.
// A context.DeadlineExceeded is NOT retryable, retrying timeouts during overload creates cascade failures.
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return errors.Is(err, eventlog.ErrAppendingEventFailed)
}

func getErrorType(err error) string {
	switch {
	case err == nil:
		return errorTypeNone
	case errors.Is(err, context.Canceled):
		return errorTypeContextCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeContextDeadline
	case errors.Is(err, eventlog.ErrAppendingEventFailed):
		return errorTypeAppendFailed
	default:
		return errorTypeOther
	}
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of attempts, including the first one.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, baseDelay*8, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter added as a fraction of each backoff delay.
// Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithRetryMetrics sets the metrics collector for retry instrumentation, labeled with operation.
func WithRetryMetrics(collector MetricsCollector, operation string) RetryOption {
	return func(config *retryConfig) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if operation == "" {
			return ErrEmptyOperation
		}

		config.metricsCollector = collector
		config.operation = operation

		return nil
	}
}
