package shell

import (
	"context"
	"errors"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
	"github.com/ticketpool/ticketpool-simulation-go/simulation"
)

// RunSummarySnapshotKind is the snapshot kind under which run summaries are stored.
const RunSummarySnapshotKind = "RunSummary"

var (
	// ErrNilSnapshotSaver is returned when NewRunSummaryRecorder receives nil.
	ErrNilSnapshotSaver = errors.New("snapshot saver must not be nil")

	// ErrRecordingRunSummaryFailed is returned when a run summary cannot be stored.
	ErrRecordingRunSummaryFailed = errors.New("recording run summary failed")

	// ErrLoadingRunSummaryFailed is returned when a stored run summary cannot be read.
	ErrLoadingRunSummaryFailed = errors.New("loading run summary failed")
)

// RunSummaryRecorder stores each finished run's summary as a snapshot.
type RunSummaryRecorder struct {
	saver SavesSnapshots
}

// NewRunSummaryRecorder creates a RunSummaryRecorder.
func NewRunSummaryRecorder(saver SavesSnapshots) (*RunSummaryRecorder, error) {
	if saver == nil {
		return nil, ErrNilSnapshotSaver
	}

	return &RunSummaryRecorder{saver: saver}, nil
}

// RecordRunFinished implements simulation.RunRecorder.
func (r *RunSummaryRecorder) RecordRunFinished(ctx context.Context, summary simulation.RunSummary) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(summary)
	if err != nil {
		return errors.Join(ErrRecordingRunSummaryFailed, err)
	}

	snapshot, err := eventlog.BuildSnapshot(summary.RunID, RunSummarySnapshotKind, data)
	if err != nil {
		return errors.Join(ErrRecordingRunSummaryFailed, err)
	}

	if err = r.saver.SaveSnapshot(ctx, snapshot); err != nil {
		return errors.Join(ErrRecordingRunSummaryFailed, err)
	}

	return nil
}

// LoadRunSummary reads the summary of a finished run.
// eventlog.ErrSnapshotNotFound stays detectable with errors.Is.
func LoadRunSummary(ctx context.Context, loader LoadsSnapshots, runID uuid.UUID) (simulation.RunSummary, error) {
	snapshot, err := loader.LoadSnapshot(ctx, runID, RunSummarySnapshotKind)
	if err != nil {
		return simulation.RunSummary{}, errors.Join(ErrLoadingRunSummaryFailed, err)
	}

	summary := simulation.RunSummary{}
	if err = jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(snapshot.Data, &summary); err != nil {
		return simulation.RunSummary{}, errors.Join(ErrLoadingRunSummaryFailed, err)
	}

	return summary, nil
}
