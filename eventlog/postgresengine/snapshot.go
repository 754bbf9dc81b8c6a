package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
)

const (
	operationSaveSnapshot    = "save_snapshot"
	operationLoadSnapshot    = "load_snapshot"
	logMsgSnapshotSaved      = "snapshot saved"
	logMsgSnapshotLoaded     = "snapshot loaded"
	logMsgSaveSnapshotFailed = "failed to save snapshot"
	logMsgLoadSnapshotFailed = "failed to load snapshot"
	logAttrRunID             = "run_id"
	logAttrSnapshotKind      = "kind"
	logActionSaveSnapshot    = "save snapshot"
	logActionLoadSnapshot    = "load snapshot"
	colRunID                 = "run_id"
	colKind                  = "kind"
	colData                  = "data"
	colCreatedAt             = "created_at"
	snapshotConflictTarget   = colRunID + ", " + colKind
	excludedData             = "EXCLUDED." + colData
	excludedCreatedAt        = "EXCLUDED." + colCreatedAt
	spanAttrSnapshotKind     = "snapshot_kind"
	spanAttrRunID            = "run_id"
)

// SaveSnapshot stores the snapshot, replacing any previous one for the same run and kind.
func (el *EventLog) SaveSnapshot(ctx context.Context, snapshot eventlog.Snapshot) error {
	observer, ctx := el.observe(ctx, operationSaveSnapshot, map[string]string{
		spanAttrRunID:        snapshot.RunID.String(),
		spanAttrSnapshotKind: snapshot.Kind,
		spanAttrTable:        el.snapshotTableName,
	})

	if err := snapshot.Validate(); err != nil {
		observer.fail(errorTypeBuildQuery)
		return errors.Join(eventlog.ErrSavingSnapshotFailed, err)
	}

	upsertStmt := goqu.Dialect(dialectPostgres).
		Insert(el.snapshotTableName).
		Rows(goqu.Record{
			colRunID:     snapshot.RunID.String(),
			colKind:      snapshot.Kind,
			colData:      goqu.L(castJsonb, []byte(snapshot.Data)),
			colCreatedAt: goqu.L(castTimestamp, snapshot.CreatedAt),
		}).
		OnConflict(goqu.DoUpdate(snapshotConflictTarget, goqu.Record{
			colData:      goqu.L(excludedData),
			colCreatedAt: goqu.L(excludedCreatedAt),
		}))

	sqlQuery, _, toSQLErr := upsertStmt.ToSQL()
	if toSQLErr != nil {
		el.logError(ctx, logMsgSaveSnapshotFailed, toSQLErr)
		observer.fail(errorTypeBuildQuery)

		return errors.Join(eventlog.ErrSavingSnapshotFailed, eventlog.ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	_, execErr := el.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	el.logSQL(ctx, sqlQuery, logActionSaveSnapshot, duration)

	if execErr != nil {
		el.logError(ctx, logMsgSaveSnapshotFailed, execErr, logAttrRunID, snapshot.RunID.String())
		observer.fail(errorTypeDatabase)

		return errors.Join(eventlog.ErrSavingSnapshotFailed, execErr)
	}

	el.logOperation(ctx, logMsgSnapshotSaved,
		logAttrRunID, snapshot.RunID.String(),
		logAttrSnapshotKind, snapshot.Kind,
		logAttrDurationMS, toMilliseconds(duration))
	observer.succeed(0)

	return nil
}

// LoadSnapshot returns the snapshot stored for runID and kind.
// It returns eventlog.ErrSnapshotNotFound if there is none.
func (el *EventLog) LoadSnapshot(ctx context.Context, runID uuid.UUID, kind string) (eventlog.Snapshot, error) {
	observer, ctx := el.observe(ctx, operationLoadSnapshot, map[string]string{
		spanAttrRunID:        runID.String(),
		spanAttrSnapshotKind: kind,
		spanAttrTable:        el.snapshotTableName,
	})

	selectStmt := goqu.Dialect(dialectPostgres).
		From(el.snapshotTableName).
		Select(colData, colCreatedAt).
		Where(goqu.Ex{colRunID: runID.String(), colKind: kind})

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		el.logError(ctx, logMsgLoadSnapshotFailed, toSQLErr)
		observer.fail(errorTypeBuildQuery)

		return eventlog.Snapshot{}, errors.Join(eventlog.ErrLoadingSnapshotFailed, eventlog.ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	rows, queryErr := el.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	el.logSQL(ctx, sqlQuery, logActionLoadSnapshot, duration)

	if queryErr != nil {
		el.logError(ctx, logMsgLoadSnapshotFailed, queryErr, logAttrRunID, runID.String())
		observer.fail(errorTypeDatabase)

		return eventlog.Snapshot{}, errors.Join(eventlog.ErrLoadingSnapshotFailed, queryErr)
	}
	defer el.closeRows(ctx, rows)

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			el.logError(ctx, logMsgLoadSnapshotFailed, err, logAttrRunID, runID.String())
			observer.fail(errorTypeDatabase)

			return eventlog.Snapshot{}, errors.Join(eventlog.ErrLoadingSnapshotFailed, err)
		}

		observer.fail(errorTypeNotFound)

		return eventlog.Snapshot{}, eventlog.ErrSnapshotNotFound
	}

	snapshot := eventlog.Snapshot{RunID: runID, Kind: kind}

	var data []byte
	if err := rows.Scan(&data, &snapshot.CreatedAt); err != nil {
		el.logError(ctx, logMsgScanRowFailed, err)
		observer.fail(errorTypeScan)

		return eventlog.Snapshot{}, errors.Join(eventlog.ErrLoadingSnapshotFailed, eventlog.ErrScanningDBRowFailed, err)
	}

	snapshot.Data = data

	el.logOperation(ctx, logMsgSnapshotLoaded,
		logAttrRunID, runID.String(),
		logAttrSnapshotKind, kind,
		logAttrDurationMS, toMilliseconds(duration))
	observer.succeed(0)

	return snapshot, nil
}
