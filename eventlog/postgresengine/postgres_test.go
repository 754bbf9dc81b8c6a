package postgresengine

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
)

func givenStorableEvent(t *testing.T, eventType string, payload string) eventlog.StorableEvent {
	t.Helper()

	event, err := eventlog.BuildStorableEvent(
		eventType,
		time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC),
		[]byte(payload),
		[]byte(`{"Sequence": 1}`),
	)
	require.NoError(t, err, "error in arranging test data")

	return event
}

func Test_Constructors_RejectNilConnections(t *testing.T) {
	_, pgxErr := NewEventLogFromPGXPool(nil)
	_, replicaErr := NewEventLogFromPGXPoolAndReplica(nil, &pgxpool.Pool{})
	_, sqlErr := NewEventLogFromSQLDB(nil)
	_, sqlxErr := NewEventLogFromSQLX(nil)

	assert.ErrorIs(t, pgxErr, eventlog.ErrNilDatabaseConnection)
	assert.ErrorIs(t, replicaErr, eventlog.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlErr, eventlog.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlxErr, eventlog.ErrNilDatabaseConnection)
}

func Test_Constructors_AcceptConnections(t *testing.T) {
	// sql.Open and sqlx.NewDb do not connect, so no database is needed here.
	db, err := sql.Open("postgres", "postgres://localhost/unused?sslmode=disable")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	fromSQL, sqlErr := NewEventLogFromSQLDB(db)
	fromSQLX, sqlxErr := NewEventLogFromSQLX(sqlx.NewDb(db, "postgres"))

	assert.NoError(t, sqlErr)
	assert.NoError(t, sqlxErr)
	assert.Equal(t, defaultEventTableName, fromSQL.eventTableName)
	assert.Equal(t, defaultSnapshotTableName, fromSQLX.snapshotTableName)
}

func Test_Options_RejectEmptyTableNames(t *testing.T) {
	_, eventErr := newEventLog(&fakeDB{}, WithEventTableName(""))
	_, snapshotErr := newEventLog(&fakeDB{}, WithSnapshotTableName(""))

	assert.ErrorIs(t, eventErr, eventlog.ErrEmptyTableNameSupplied)
	assert.ErrorIs(t, snapshotErr, eventlog.ErrEmptyTableNameSupplied)
}

func Test_Append_SingleEvent_BuildsInsert(t *testing.T) {
	// arrange
	db := &fakeDB{rowsAffected: 1}
	el := newTestEventLog(db, WithEventTableName("events_under_test"))

	// act
	err := el.Append(context.Background(), givenStorableEvent(t, "TicketSold", `{"TicketID": 3}`))

	// assert
	assert.NoError(t, err)
	statement := db.lastStatement()
	assert.Contains(t, statement, `INSERT INTO "events_under_test" ("event_type", "occurred_at", "payload", "metadata")`)
	assert.Contains(t, statement, `'TicketSold'::text`)
	assert.Contains(t, statement, `::timestamp with time zone`)
	assert.Equal(t, 2, strings.Count(statement, "::jsonb"))
}

func Test_Append_MultipleEvents_BuildsOneStatement(t *testing.T) {
	// arrange
	db := &fakeDB{rowsAffected: 3}
	el := newTestEventLog(db)

	// act
	err := el.Append(
		context.Background(),
		givenStorableEvent(t, "TicketProduced", `{"TicketID": 1}`),
		givenStorableEvent(t, "TicketProduced", `{"TicketID": 2}`),
		givenStorableEvent(t, "TicketSold", `{"TicketID": 1}`),
	)

	// assert
	assert.NoError(t, err)
	assert.Len(t, db.allStatements(), 1)
	assert.Equal(t, 3, strings.Count(db.lastStatement(), "::text"))
}

func Test_Append_Fails_WhenRowsAffectedMismatch(t *testing.T) {
	db := &fakeDB{rowsAffected: 1}
	el := newTestEventLog(db)

	err := el.Append(
		context.Background(),
		givenStorableEvent(t, "TicketProduced", `{"TicketID": 1}`),
		givenStorableEvent(t, "TicketProduced", `{"TicketID": 2}`),
	)

	assert.ErrorIs(t, err, eventlog.ErrAppendingEventFailed)
}

func Test_Append_Fails_WhenDatabaseFails(t *testing.T) {
	db := &fakeDB{execErr: errFakeDB}
	el := newTestEventLog(db)

	err := el.Append(context.Background(), givenStorableEvent(t, "TicketSold", `{}`))

	assert.ErrorIs(t, err, eventlog.ErrAppendingEventFailed)
	assert.ErrorIs(t, err, errFakeDB)
}

func Test_Query_BuildsSelectFromFilter(t *testing.T) {
	// arrange
	db := &fakeDB{}
	el := newTestEventLog(db)
	filter := eventlog.BuildFilter().
		AnyEventTypeOf("TicketSold", "TicketProduced").
		AllPredicatesOf(eventlog.P("RunID", "run-1")).
		OccurredFrom(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)).
		Finalize()

	// act
	_, _, err := el.Query(context.Background(), filter)

	// assert
	assert.NoError(t, err)
	statement := db.lastStatement()
	assert.Contains(t, statement, `FROM "ticket_events"`)
	assert.Contains(t, statement, `"event_type" IN ('TicketProduced', 'TicketSold')`)
	assert.Contains(t, statement, `payload @> '{"RunID":"run-1"}'::jsonb`)
	assert.Contains(t, statement, `"occurred_at" >= `)
	assert.NotContains(t, statement, `"occurred_at" <= `)
	assert.Contains(t, statement, `ORDER BY "sequence_number" ASC`)
}

func Test_Query_EmptyFilter_HasNoWhereClause(t *testing.T) {
	db := &fakeDB{}
	el := newTestEventLog(db)

	_, maxSequence, err := el.Query(context.Background(), eventlog.BuildFilter().Finalize())

	assert.NoError(t, err)
	assert.NotContains(t, db.lastStatement(), "WHERE")
	assert.Equal(t, eventlog.MaxSequenceNumberUint(0), maxSequence)
}

func Test_Query_ReturnsEventsAndMaxSequence(t *testing.T) {
	// arrange
	occurredAt := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	db := &fakeDB{queryRows: [][]any{
		{uint(4), "TicketProduced", occurredAt, []byte(`{"TicketID": 1}`), []byte(`{}`)},
		{uint(9), "TicketSold", occurredAt, []byte(`{"TicketID": 1}`), []byte(`{}`)},
	}}
	el := newTestEventLog(db)

	// act
	events, maxSequence, err := el.Query(context.Background(), eventlog.BuildFilter().Finalize())

	// assert
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint(4), events[0].SequenceNumber)
	assert.Equal(t, "TicketSold", events[1].EventType)
	assert.Equal(t, eventlog.MaxSequenceNumberUint(9), maxSequence)
}

func Test_Query_Fails_WhenRowCannotBeScanned(t *testing.T) {
	db := &fakeDB{queryRows: [][]any{{"not-a-sequence"}}}
	el := newTestEventLog(db)

	_, _, err := el.Query(context.Background(), eventlog.BuildFilter().Finalize())

	assert.ErrorIs(t, err, eventlog.ErrScanningDBRowFailed)
}

func Test_Query_Fails_WhenDatabaseFails(t *testing.T) {
	db := &fakeDB{queryErr: errFakeDB}
	el := newTestEventLog(db)

	_, _, err := el.Query(context.Background(), eventlog.BuildFilter().Finalize())

	assert.ErrorIs(t, err, eventlog.ErrQueryingEventsFailed)
}

func Test_Ping_DelegatesToAdapter(t *testing.T) {
	el := newTestEventLog(&fakeDB{pingErr: errFakeDB})

	assert.ErrorIs(t, el.Ping(context.Background()), errFakeDB)
}
