package eventlog

import (
	"errors"
)

var (
	// ErrNilDatabaseConnection is returned when a constructor receives a nil connection.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyTableNameSupplied is returned when an empty table name is configured.
	ErrEmptyTableNameSupplied = errors.New("empty table name supplied")

	// ErrNoEventsToAppend is returned when Append is called without events.
	ErrNoEventsToAppend = errors.New("no events to append")

	// ErrBuildingQueryFailed is returned when a SQL statement could not be built.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrQueryingEventsFailed is returned when reading events from the database fails.
	ErrQueryingEventsFailed = errors.New("querying events failed")

	// ErrScanningDBRowFailed is returned when a result row cannot be scanned.
	ErrScanningDBRowFailed = errors.New("scanning db row failed")

	// ErrAppendingEventFailed is returned when writing events to the database fails.
	ErrAppendingEventFailed = errors.New("appending event failed")

	// ErrEnsuringSchemaFailed is returned when the tables or indexes cannot be created.
	ErrEnsuringSchemaFailed = errors.New("ensuring schema failed")
)

// MaxSequenceNumberUint is the highest sequence number among the events returned by a query.
type MaxSequenceNumberUint = uint
