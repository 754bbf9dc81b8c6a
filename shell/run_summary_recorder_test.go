package shell_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
	"github.com/ticketpool/ticketpool-simulation-go/shell"
	"github.com/ticketpool/ticketpool-simulation-go/simulation"
	"github.com/ticketpool/ticketpool-simulation-go/ticketpool"
)

type snapshotStoreStub struct {
	snapshots map[string]eventlog.Snapshot
	saveErr   error
}

func newSnapshotStoreStub() *snapshotStoreStub {
	return &snapshotStoreStub{snapshots: make(map[string]eventlog.Snapshot)}
}

func (s *snapshotStoreStub) SaveSnapshot(_ context.Context, snapshot eventlog.Snapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}

	s.snapshots[snapshot.RunID.String()+"/"+snapshot.Kind] = snapshot

	return nil
}

func (s *snapshotStoreStub) LoadSnapshot(_ context.Context, runID uuid.UUID, kind string) (eventlog.Snapshot, error) {
	snapshot, ok := s.snapshots[runID.String()+"/"+kind]
	if !ok {
		return eventlog.Snapshot{}, eventlog.ErrSnapshotNotFound
	}

	return snapshot, nil
}

func givenRunSummary() simulation.RunSummary {
	startedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	return simulation.RunSummary{
		RunID:      uuid.New(),
		Config:     simulation.DefaultConfig(),
		Outcome:    simulation.OutcomeCompleted,
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(90 * time.Second),
		Statistics: ticketpool.Statistics{Available: 0, Produced: 100, Sold: 100, IsComplete: true},
		Agents: []simulation.AgentSummary{
			{ID: "vendor-1", Role: simulation.AgentRoleVendor, Succeeded: 100, Skipped: 3},
			{ID: "customer-1", Role: simulation.AgentRoleCustomer, VIP: true, Succeeded: 100, Skipped: 12},
		},
	}
}

func Test_NewRunSummaryRecorder_RejectsNilSaver(t *testing.T) {
	_, err := shell.NewRunSummaryRecorder(nil)

	assert.ErrorIs(t, err, shell.ErrNilSnapshotSaver)
}

func Test_RunSummaryRecorder_StoresSummaryThatCanBeLoadedAgain(t *testing.T) {
	// arrange
	store := newSnapshotStoreStub()
	recorder, err := shell.NewRunSummaryRecorder(store)
	require.NoError(t, err, "error in arranging test data")
	summary := givenRunSummary()

	// act
	recordErr := recorder.RecordRunFinished(context.Background(), summary)
	loaded, loadErr := shell.LoadRunSummary(context.Background(), store, summary.RunID)

	// assert
	require.NoError(t, recordErr)
	require.NoError(t, loadErr)
	assert.Equal(t, summary, loaded)
	assert.Contains(t, store.snapshots, summary.RunID.String()+"/"+shell.RunSummarySnapshotKind)
}

func Test_RunSummaryRecorder_WrapsSaveErrors(t *testing.T) {
	store := newSnapshotStoreStub()
	store.saveErr = errors.Join(eventlog.ErrSavingSnapshotFailed, errors.New("connection refused"))
	recorder, err := shell.NewRunSummaryRecorder(store)
	require.NoError(t, err, "error in arranging test data")

	err = recorder.RecordRunFinished(context.Background(), givenRunSummary())

	assert.ErrorIs(t, err, shell.ErrRecordingRunSummaryFailed)
	assert.ErrorIs(t, err, eventlog.ErrSavingSnapshotFailed)
}

func Test_RunSummaryRecorder_RejectsSummaryWithoutRunID(t *testing.T) {
	recorder, err := shell.NewRunSummaryRecorder(newSnapshotStoreStub())
	require.NoError(t, err, "error in arranging test data")
	summary := givenRunSummary()
	summary.RunID = uuid.Nil

	err = recorder.RecordRunFinished(context.Background(), summary)

	assert.ErrorIs(t, err, eventlog.ErrNilRunID)
}

func Test_LoadRunSummary_KeepsNotFoundDetectable(t *testing.T) {
	_, err := shell.LoadRunSummary(context.Background(), newSnapshotStoreStub(), uuid.New())

	assert.ErrorIs(t, err, shell.ErrLoadingRunSummaryFailed)
	assert.ErrorIs(t, err, eventlog.ErrSnapshotNotFound)
}
