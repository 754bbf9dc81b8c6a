package config

import (
	"context"
	"errors"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog/postgresengine"
)

// EventLogHandle is an opened EventLog together with the connections it owns.
type EventLogHandle struct {
	EventLog *postgresengine.EventLog
	closers  []func() error
}

// Close releases the database connections.
func (h *EventLogHandle) Close() error {
	var errs []error
	for _, closeFn := range h.closers {
		errs = append(errs, closeFn())
	}

	return errors.Join(errs...)
}

// OpenEventLog connects to Postgres with the adapter named in cfg and creates the EventLog on top of it.
// A replica DSN is only honoured by the pgx adapter.
func OpenEventLog(ctx context.Context, cfg PostgresConfig, options ...postgresengine.Option) (*EventLogHandle, error) {
	if !cfg.Enabled() {
		return nil, ErrPostgresNotConfigured
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options = append([]postgresengine.Option{
		postgresengine.WithEventTableName(cfg.EventTable),
		postgresengine.WithSnapshotTableName(cfg.SnapshotTable),
	}, options...)

	switch cfg.Adapter {
	case AdapterSQL:
		return openSQLEventLog(ctx, cfg, options)
	case AdapterSQLX:
		return openSQLXEventLog(ctx, cfg, options)
	default:
		return openPGXEventLog(ctx, cfg, options)
	}
}

func openPGXEventLog(ctx context.Context, cfg PostgresConfig, options []postgresengine.Option) (*EventLogHandle, error) {
	primary, err := OpenPGXPool(ctx, cfg, cfg.DSN)
	if err != nil {
		return nil, err
	}

	handle := &EventLogHandle{closers: []func() error{closePool(primary.Close)}}

	if cfg.ReplicaDSN == "" {
		handle.EventLog, err = postgresengine.NewEventLogFromPGXPool(primary, options...)
		if err != nil {
			_ = handle.Close()
			return nil, err
		}

		return handle, nil
	}

	replica, err := OpenPGXPool(ctx, cfg, cfg.ReplicaDSN)
	if err != nil {
		_ = handle.Close()
		return nil, err
	}

	handle.closers = append(handle.closers, closePool(replica.Close))

	handle.EventLog, err = postgresengine.NewEventLogFromPGXPoolAndReplica(primary, replica, options...)
	if err != nil {
		_ = handle.Close()
		return nil, err
	}

	return handle, nil
}

func openSQLEventLog(ctx context.Context, cfg PostgresConfig, options []postgresengine.Option) (*EventLogHandle, error) {
	db, err := OpenSQLDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	eventLog, err := postgresengine.NewEventLogFromSQLDB(db, options...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &EventLogHandle{EventLog: eventLog, closers: []func() error{db.Close}}, nil
}

func openSQLXEventLog(ctx context.Context, cfg PostgresConfig, options []postgresengine.Option) (*EventLogHandle, error) {
	db, err := OpenSQLX(ctx, cfg)
	if err != nil {
		return nil, err
	}

	eventLog, err := postgresengine.NewEventLogFromSQLX(db, options...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &EventLogHandle{EventLog: eventLog, closers: []func() error{db.Close}}, nil
}

func closePool(closeFn func()) func() error {
	return func() error {
		closeFn()
		return nil
	}
}
