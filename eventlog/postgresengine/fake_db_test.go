package postgresengine

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog/postgresengine/internal/adapters"
)

var errFakeDB = errors.New("fake db failure")

// fakeDB is an in-memory adapters.DBAdapter that records statements and replays canned results.
type fakeDB struct {
	mu           sync.Mutex
	statements   []string
	queryRows    [][]any
	queryErr     error
	execErr      error
	rowsAffected int64
	pingErr      error
}

func (f *fakeDB) Query(_ context.Context, query string) (adapters.DBRows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statements = append(f.statements, query)
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	return &fakeRows{rows: f.queryRows, index: -1}, nil
}

func (f *fakeDB) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statements = append(f.statements, query)
	if f.execErr != nil {
		return nil, f.execErr
	}

	return fakeResult(f.rowsAffected), nil
}

func (f *fakeDB) Ping(_ context.Context) error {
	return f.pingErr
}

func (f *fakeDB) lastStatement() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.statements) == 0 {
		return ""
	}

	return f.statements[len(f.statements)-1]
}

func (f *fakeDB) allStatements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.statements...)
}

type fakeRows struct {
	rows   [][]any
	index  int
	closed bool
}

func (r *fakeRows) Next() bool {
	r.index++
	return r.index < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.index]
	if len(row) != len(dest) {
		return errors.New("column count mismatch")
	}

	for i, value := range row {
		target := reflect.ValueOf(dest[i]).Elem()
		source := reflect.ValueOf(value)

		if !source.Type().AssignableTo(target.Type()) {
			return errors.New("cannot scan " + source.Type().String() + " into " + target.Type().String())
		}

		target.Set(source)
	}

	return nil
}

func (r *fakeRows) Err() error {
	return nil
}

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

type fakeResult int64

func (r fakeResult) RowsAffected() (int64, error) {
	return int64(r), nil
}

func newTestEventLog(db *fakeDB, options ...Option) *EventLog {
	el, err := newEventLog(db, options...)
	if err != nil {
		panic(err)
	}

	return el
}
