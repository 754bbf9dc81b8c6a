package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
)

const (
	operationEnsureSchema    = "ensure_schema"
	logMsgSchemaEnsured      = "schema ensured"
	logMsgEnsureSchemaFailed = "failed to ensure schema"
	logActionEnsureSchema    = "ensure schema"
	logAttrStatementCount    = "statement_count"
)

const createEventTableTemplate = `CREATE TABLE IF NOT EXISTS %s (
	sequence_number BIGSERIAL PRIMARY KEY,
	event_type TEXT NOT NULL,
	occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
	payload JSONB NOT NULL,
	metadata JSONB NOT NULL,
	appended_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
)`

const createSnapshotTableTemplate = `CREATE TABLE IF NOT EXISTS %s (
	run_id UUID NOT NULL,
	kind TEXT NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	PRIMARY KEY (run_id, kind)
)`

const (
	createEventTypeIndexTemplate = `CREATE INDEX IF NOT EXISTS %s ON %s (event_type)`
	createPayloadIndexTemplate   = `CREATE INDEX IF NOT EXISTS %s ON %s USING gin (payload jsonb_path_ops)`
)

// SchemaStatements returns the DDL that EnsureSchema executes, in order.
// All statements are idempotent.
func (el *EventLog) SchemaStatements() []string {
	eventTable := pq.QuoteIdentifier(el.eventTableName)
	snapshotTable := pq.QuoteIdentifier(el.snapshotTableName)

	return []string{
		fmt.Sprintf(createEventTableTemplate, eventTable),
		fmt.Sprintf(createEventTypeIndexTemplate, pq.QuoteIdentifier(el.eventTableName+"_event_type_idx"), eventTable),
		fmt.Sprintf(createPayloadIndexTemplate, pq.QuoteIdentifier(el.eventTableName+"_payload_idx"), eventTable),
		fmt.Sprintf(createSnapshotTableTemplate, snapshotTable),
	}
}

// EnsureSchema creates the event and snapshot tables and their indexes if they do not exist.
func (el *EventLog) EnsureSchema(ctx context.Context) error {
	observer, ctx := el.observe(ctx, operationEnsureSchema, nil)

	statements := el.SchemaStatements()
	start := time.Now()

	for _, statement := range statements {
		statementStart := time.Now()
		_, execErr := el.db.Exec(ctx, statement)
		el.logSQL(ctx, statement, logActionEnsureSchema, time.Since(statementStart))

		if execErr != nil {
			el.logError(ctx, logMsgEnsureSchemaFailed, execErr, logAttrQuery, statement)
			observer.fail(errorTypeDatabase)

			return errors.Join(eventlog.ErrEnsuringSchemaFailed, execErr)
		}
	}

	el.logOperation(ctx, logMsgSchemaEnsured,
		logAttrStatementCount, len(statements),
		logAttrDurationMS, toMilliseconds(time.Since(start)))
	observer.succeed(0)

	return nil
}
