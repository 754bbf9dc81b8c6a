package postgresengine

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
)

const (
	metricAppendDuration   = "eventlog_append_duration_seconds"
	metricQueryDuration    = "eventlog_query_duration_seconds"
	metricSnapshotDuration = "eventlog_snapshot_duration_seconds"
	metricSchemaDuration   = "eventlog_schema_duration_seconds"
	metricEventsAppended   = "eventlog_events_appended_total"
	metricEventsQueried    = "eventlog_events_queried_total"
	metricDatabaseErrors   = "eventlog_database_errors_total"
	spanNamePrefix         = "eventlog."
	spanAttrOperation      = "operation"
	spanAttrEventCount     = "event_count"
	spanAttrEventType      = "event_type"
	spanAttrErrorType      = "error_type"
	spanAttrDurationMS     = "duration_ms"
	spanAttrTable          = "table"
	labelStatus            = "status"
	statusSuccess          = "success"
	statusError            = "error"
	errorTypeBuildQuery    = "build_query"
	errorTypeDatabase      = "database"
	errorTypeRowsAffected  = "rows_affected"
	errorTypeScan          = "scan"
	errorTypeNotFound      = "not_found"
	errorTypeCanceled      = "canceled"
)

var durationMetricByOperation = map[string]string{
	operationAppend:       metricAppendDuration,
	operationQuery:        metricQueryDuration,
	operationSaveSnapshot: metricSnapshotDuration,
	operationLoadSnapshot: metricSnapshotDuration,
	operationEnsureSchema: metricSchemaDuration,
}

var countMetricByOperation = map[string]string{
	operationAppend: metricEventsAppended,
	operationQuery:  metricEventsQueried,
}

// operationObserver bundles tracing and metrics for one EventLog operation.
type operationObserver struct {
	el        *EventLog
	ctx       context.Context
	operation string
	span      eventlog.SpanContext
	start     time.Time
}

// observe starts the span for operation and returns the observer together with the span's context.
func (el *EventLog) observe(ctx context.Context, operation string, attrs map[string]string) (*operationObserver, context.Context) {
	spanAttrs := map[string]string{spanAttrOperation: operation}
	for key, value := range attrs {
		spanAttrs[key] = value
	}

	newCtx := ctx

	var span eventlog.SpanContext
	if el.tracingCollector != nil {
		newCtx, span = el.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, spanAttrs)
	}

	return &operationObserver{
		el:        el,
		ctx:       newCtx,
		operation: operation,
		span:      span,
		start:     time.Now(),
	}, newCtx
}

// succeed records the duration and, for append and query, the number of events.
func (o *operationObserver) succeed(eventCount int) {
	duration := time.Since(o.start)

	o.el.recordDuration(o.ctx, o.operation, duration, statusSuccess)

	if metricName, ok := countMetricByOperation[o.operation]; ok {
		o.el.recordValue(o.ctx, metricName, float64(eventCount), o.operation)
	}

	if o.span == nil {
		return
	}

	attrs := map[string]string{spanAttrDurationMS: formatMilliseconds(duration)}
	if _, ok := countMetricByOperation[o.operation]; ok {
		attrs[spanAttrEventCount] = strconv.Itoa(eventCount)
	}

	o.span.SetStatus(statusSuccess)
	o.el.tracingCollector.FinishSpan(o.span, statusSuccess, attrs)
}

// fail records the duration and an error counter labeled with errorType.
func (o *operationObserver) fail(errorType string) {
	duration := time.Since(o.start)

	if o.ctx.Err() != nil {
		errorType = errorTypeCanceled
	}

	o.el.recordDuration(o.ctx, o.operation, duration, statusError)
	o.el.recordError(o.ctx, o.operation, errorType)

	if o.span == nil {
		return
	}

	o.span.SetStatus(statusError)
	o.span.AddAttribute(spanAttrErrorType, errorType)
	o.el.tracingCollector.FinishSpan(o.span, statusError, map[string]string{
		spanAttrErrorType:  errorType,
		spanAttrDurationMS: formatMilliseconds(duration),
	})
}

func (el *EventLog) recordDuration(ctx context.Context, operation string, duration time.Duration, status string) {
	if el.metricsCollector == nil {
		return
	}

	metricName := durationMetricByOperation[operation]
	labels := map[string]string{spanAttrOperation: operation, labelStatus: status}

	if contextual, ok := el.metricsCollector.(eventlog.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metricName, duration, labels)
		return
	}

	el.metricsCollector.RecordDuration(metricName, duration, labels)
}

func (el *EventLog) recordValue(ctx context.Context, metricName string, value float64, operation string) {
	if el.metricsCollector == nil {
		return
	}

	labels := map[string]string{spanAttrOperation: operation, labelStatus: statusSuccess}

	if contextual, ok := el.metricsCollector.(eventlog.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metricName, value, labels)
		return
	}

	el.metricsCollector.RecordValue(metricName, value, labels)
}

func (el *EventLog) recordError(ctx context.Context, operation, errorType string) {
	if el.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		labelStatus:       statusError,
		spanAttrErrorType: errorType,
	}

	if contextual, ok := el.metricsCollector.(eventlog.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricDatabaseErrors, labels)
		return
	}

	el.metricsCollector.IncrementCounter(metricDatabaseErrors, labels)
}

// logSQL logs a statement with its execution time at debug level.
func (el *EventLog) logSQL(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	args := []any{logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery}

	if el.logger != nil {
		el.logger.Debug(logMsgSQLExecuted+action, args...)
	}

	if el.contextualLogger != nil {
		el.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
	}
}

// logOperation logs operational information at info level.
func (el *EventLog) logOperation(ctx context.Context, action string, args ...any) {
	if el.logger != nil {
		el.logger.Info(logMsgOperation+action, args...)
	}

	if el.contextualLogger != nil {
		el.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical failures.
func (el *EventLog) logWarn(ctx context.Context, message string, err error) {
	if el.logger != nil {
		el.logger.Warn(message, logAttrError, err.Error())
	}

	if el.contextualLogger != nil {
		el.contextualLogger.WarnContext(ctx, message, logAttrError, err.Error())
	}
}

// logError logs failures that abort an operation.
func (el *EventLog) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if el.logger != nil {
		el.logger.Error(message, allArgs...)
	}

	if el.contextualLogger != nil {
		el.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func formatMilliseconds(d time.Duration) string {
	return strconv.FormatFloat(toMilliseconds(d), 'f', 2, 64)
}
