package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
	"github.com/ticketpool/ticketpool-simulation-go/eventlog/postgresengine/internal/adapters"
)

const (
	defaultEventTableName          = "ticket_events"
	defaultSnapshotTableName       = "ticket_run_snapshots"
	logMsgBuildSelectQueryFailed   = "failed to build select query"
	logMsgBuildInsertQueryFailed   = "failed to build insert query"
	logMsgDBQueryFailed            = "database query execution failed"
	logMsgDBExecFailed             = "database execution failed during event append"
	logMsgRowsAffectedFailed       = "failed to get rows affected count"
	logMsgCloseRowsFailed          = "failed to close database rows"
	logMsgScanRowFailed            = "failed to scan database row"
	logMsgBuildStorableEventFailed = "failed to build storable event from database row"
	logMsgEventsQueried            = "events queried"
	logMsgEventsAppended           = "events appended"
	logMsgSQLExecuted              = "executed sql for: "
	logMsgOperation                = "eventlog operation: "
	logAttrError                   = "error"
	logAttrQuery                   = "query"
	logAttrEventType               = "event_type"
	logAttrEventCount              = "event_count"
	logAttrDurationMS              = "duration_ms"
	logAttrRowsAffected            = "rows_affected"
	logAttrMaxSequence             = "max_sequence"
	logActionQuery                 = "query"
	logActionAppend                = "append"
	operationAppend                = "append"
	operationQuery                 = "query"
	colSequenceNumber              = "sequence_number"
	colEventType                   = "event_type"
	colOccurredAt                  = "occurred_at"
	colPayload                     = "payload"
	colMetadata                    = "metadata"
	dialectPostgres                = "postgres"
	castText                       = "?::text"
	castTimestamp                  = "?::timestamp with time zone"
	castJsonb                      = "?::jsonb"
	exprPayloadContains            = colPayload + " @> ?::jsonb"
)

// errRowsAffectedMismatch is joined into ErrAppendingEventFailed when fewer rows were written than requested.
var errRowsAffectedMismatch = errors.New("rows affected does not match event count")

// EventLog is the PostgreSQL implementation of the ticket event log.
// It is safe for concurrent use.
type EventLog struct {
	db                adapters.DBAdapter
	eventTableName    string
	snapshotTableName string
	logger            eventlog.Logger
	contextualLogger  eventlog.ContextualLogger
	metricsCollector  eventlog.MetricsCollector
	tracingCollector  eventlog.TracingCollector
}

// NewEventLogFromPGXPool creates a new EventLog using a pgx Pool with optional configuration.
func NewEventLogFromPGXPool(db *pgxpool.Pool, options ...Option) (*EventLog, error) {
	if db == nil {
		return nil, eventlog.ErrNilDatabaseConnection
	}

	return newEventLog(adapters.NewPGXAdapter(db), options...)
}

// NewEventLogFromPGXPoolAndReplica creates a new EventLog that appends to db and queries the replica.
// Reads from the replica may lag behind recent appends.
func NewEventLogFromPGXPoolAndReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*EventLog, error) {
	if db == nil || replica == nil {
		return nil, eventlog.ErrNilDatabaseConnection
	}

	return newEventLog(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewEventLogFromSQLDB creates a new EventLog using a sql.DB with optional configuration.
func NewEventLogFromSQLDB(db *sql.DB, options ...Option) (*EventLog, error) {
	if db == nil {
		return nil, eventlog.ErrNilDatabaseConnection
	}

	return newEventLog(adapters.NewSQLAdapter(db), options...)
}

// NewEventLogFromSQLX creates a new EventLog using a sqlx.DB with optional configuration.
func NewEventLogFromSQLX(db *sqlx.DB, options ...Option) (*EventLog, error) {
	if db == nil {
		return nil, eventlog.ErrNilDatabaseConnection
	}

	return newEventLog(adapters.NewSQLXAdapter(db), options...)
}

func newEventLog(db adapters.DBAdapter, options ...Option) (*EventLog, error) {
	el := &EventLog{
		db:                db,
		eventTableName:    defaultEventTableName,
		snapshotTableName: defaultSnapshotTableName,
	}

	for _, option := range options {
		if err := option(el); err != nil {
			return nil, err
		}
	}

	return el, nil
}

// Ping verifies the database connection.
func (el *EventLog) Ping(ctx context.Context) error {
	return el.db.Ping(ctx)
}

// Append writes one or more events in a single INSERT statement.
// Either all events are written or the call fails with eventlog.ErrAppendingEventFailed.
func (el *EventLog) Append(ctx context.Context, event eventlog.StorableEvent, additionalEvents ...eventlog.StorableEvent) error {
	allEvents := eventlog.StorableEvents{event}
	allEvents = append(allEvents, additionalEvents...)

	observer, ctx := el.observe(ctx, operationAppend, map[string]string{
		spanAttrEventCount: strconv.Itoa(len(allEvents)),
		spanAttrEventType:  event.EventType,
		spanAttrTable:      el.eventTableName,
	})

	sqlQuery, buildErr := el.buildInsertQuery(allEvents)
	if buildErr != nil {
		el.logError(ctx, logMsgBuildInsertQueryFailed, buildErr, logAttrEventCount, len(allEvents))
		observer.fail(errorTypeBuildQuery)

		return buildErr
	}

	start := time.Now()
	result, execErr := el.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	el.logSQL(ctx, sqlQuery, logActionAppend, duration)

	if execErr != nil {
		el.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		observer.fail(errorTypeDatabase)

		return errors.Join(eventlog.ErrAppendingEventFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		el.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
		observer.fail(errorTypeRowsAffected)

		return errors.Join(eventlog.ErrAppendingEventFailed, rowsAffectedErr)
	}

	if rowsAffected != int64(len(allEvents)) {
		el.logError(ctx, logMsgDBExecFailed, errRowsAffectedMismatch,
			logAttrEventCount, len(allEvents), logAttrRowsAffected, rowsAffected)
		observer.fail(errorTypeRowsAffected)

		return errors.Join(eventlog.ErrAppendingEventFailed, errRowsAffectedMismatch)
	}

	el.logOperation(ctx, logMsgEventsAppended,
		logAttrEventCount, len(allEvents),
		logAttrDurationMS, toMilliseconds(duration))
	observer.succeed(len(allEvents))

	return nil
}

// Query returns the events matching filter in sequence order,
// together with the highest sequence number among them (0 if none matched).
func (el *EventLog) Query(ctx context.Context, filter eventlog.Filter) (
	eventlog.StorableEvents,
	eventlog.MaxSequenceNumberUint,
	error,
) {
	var empty eventlog.StorableEvents

	observer, ctx := el.observe(ctx, operationQuery, map[string]string{spanAttrTable: el.eventTableName})

	sqlQuery, buildErr := el.buildSelectQuery(filter)
	if buildErr != nil {
		el.logError(ctx, logMsgBuildSelectQueryFailed, buildErr)
		observer.fail(errorTypeBuildQuery)

		return empty, 0, buildErr
	}

	start := time.Now()
	rows, queryErr := el.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	el.logSQL(ctx, sqlQuery, logActionQuery, duration)

	if queryErr != nil {
		el.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		observer.fail(errorTypeDatabase)

		return empty, 0, errors.Join(eventlog.ErrQueryingEventsFailed, queryErr)
	}
	defer el.closeRows(ctx, rows)

	events, maxSequenceNumber, scanErr := el.scanEvents(ctx, rows)
	if scanErr != nil {
		observer.fail(errorTypeScan)

		return empty, 0, scanErr
	}

	el.logOperation(ctx, logMsgEventsQueried,
		logAttrEventCount, len(events),
		logAttrMaxSequence, maxSequenceNumber,
		logAttrDurationMS, toMilliseconds(duration))
	observer.succeed(len(events))

	return events, maxSequenceNumber, nil
}

func (el *EventLog) scanEvents(ctx context.Context, rows adapters.DBRows) (
	eventlog.StorableEvents,
	eventlog.MaxSequenceNumberUint,
	error,
) {
	var (
		sequenceNumber uint
		eventType      string
		occurredAt     time.Time
		payload        []byte
		metadata       []byte
	)

	events := make(eventlog.StorableEvents, 0)
	maxSequenceNumber := eventlog.MaxSequenceNumberUint(0)

	for rows.Next() {
		if err := rows.Scan(&sequenceNumber, &eventType, &occurredAt, &payload, &metadata); err != nil {
			el.logError(ctx, logMsgScanRowFailed, err)
			return nil, 0, errors.Join(eventlog.ErrScanningDBRowFailed, err)
		}

		event, buildErr := eventlog.BuildStorableEvent(eventType, occurredAt, payload, metadata)
		if buildErr != nil {
			el.logError(ctx, logMsgBuildStorableEventFailed, buildErr, logAttrEventType, eventType)
			return nil, 0, errors.Join(eventlog.ErrScanningDBRowFailed, buildErr)
		}

		event.SequenceNumber = sequenceNumber
		events = append(events, event)
		maxSequenceNumber = sequenceNumber
	}

	if err := rows.Err(); err != nil {
		el.logError(ctx, logMsgScanRowFailed, err)
		return nil, 0, errors.Join(eventlog.ErrQueryingEventsFailed, err)
	}

	return events, maxSequenceNumber, nil
}

func (el *EventLog) closeRows(ctx context.Context, rows adapters.DBRows) {
	if err := rows.Close(); err != nil {
		el.logWarn(ctx, logMsgCloseRowsFailed, err)
	}
}

func (el *EventLog) buildInsertQuery(events eventlog.StorableEvents) (string, error) {
	values := make([][]any, 0, len(events))
	for _, event := range events {
		values = append(values, []any{
			goqu.L(castText, event.EventType),
			goqu.L(castTimestamp, event.OccurredAt),
			goqu.L(castJsonb, event.PayloadJSON),
			goqu.L(castJsonb, event.MetadataJSON),
		})
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(el.eventTableName).
		Cols(colEventType, colOccurredAt, colPayload, colMetadata).
		Vals(values...)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventlog.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (el *EventLog) buildSelectQuery(filter eventlog.Filter) (string, error) {
	whereExpressions, buildErr := el.whereExpressions(filter)
	if buildErr != nil {
		return "", buildErr
	}

	selectStmt := goqu.Dialect(dialectPostgres).
		From(el.eventTableName).
		Select(colSequenceNumber, colEventType, colOccurredAt, colPayload, colMetadata).
		Order(goqu.I(colSequenceNumber).Asc())

	if len(whereExpressions) > 0 {
		selectStmt = selectStmt.Where(whereExpressions...)
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventlog.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// whereExpressions translates the filter: event types with IN, all predicates as one JSONB containment,
// the time range as inclusive bounds.
func (el *EventLog) whereExpressions(filter eventlog.Filter) ([]exp.Expression, error) {
	expressions := make([]exp.Expression, 0, 4)

	if eventTypes := filter.EventTypes(); len(eventTypes) > 0 {
		expressions = append(expressions, goqu.C(colEventType).In(eventTypes))
	}

	if predicates := filter.Predicates(); len(predicates) > 0 {
		containment := make(map[string]string, len(predicates))
		for _, predicate := range predicates {
			containment[predicate.Key()] = predicate.Val()
		}

		containmentJSON, marshalErr := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(containment)
		if marshalErr != nil {
			return nil, errors.Join(eventlog.ErrBuildingQueryFailed, marshalErr)
		}

		expressions = append(expressions, goqu.L(exprPayloadContains, string(containmentJSON)))
	}

	if !filter.OccurredFrom().IsZero() {
		expressions = append(expressions, goqu.C(colOccurredAt).Gte(filter.OccurredFrom()))
	}

	if !filter.OccurredUntil().IsZero() {
		expressions = append(expressions, goqu.C(colOccurredAt).Lte(filter.OccurredUntil()))
	}

	return expressions, nil
}
