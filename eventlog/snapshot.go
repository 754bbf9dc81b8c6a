package eventlog

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var (
	// ErrInvalidSnapshotJSON is returned when snapshot data is malformed.
	ErrInvalidSnapshotJSON = errors.New("snapshot json is not valid")

	// ErrEmptySnapshotKind is returned when an empty snapshot kind is provided.
	ErrEmptySnapshotKind = errors.New("snapshot kind must not be empty")

	// ErrNilRunID is returned when a snapshot is built for the nil UUID.
	ErrNilRunID = errors.New("run id must not be nil")

	// ErrSavingSnapshotFailed is returned when the snapshot save operation fails.
	ErrSavingSnapshotFailed = errors.New("saving snapshot failed")

	// ErrLoadingSnapshotFailed is returned when the snapshot load operation fails.
	ErrLoadingSnapshotFailed = errors.New("loading snapshot failed")

	// ErrSnapshotNotFound is returned when no snapshot exists for the requested run and kind.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Snapshot is a JSON document stored once per run and kind.
// Saving a snapshot for an existing (RunID, Kind) pair replaces it.
type Snapshot struct {
	RunID     uuid.UUID
	Kind      string          // e.g. "RunSummary"
	Data      json.RawMessage // serialized state as JSON
	CreatedAt time.Time
}

// Validate ensures the snapshot has valid data for storage operations.
func (s Snapshot) Validate() error {
	if s.RunID == uuid.Nil {
		return ErrNilRunID
	}

	if s.Kind == "" {
		return ErrEmptySnapshotKind
	}

	if !jsoniter.ConfigFastest.Valid(s.Data) {
		return ErrInvalidSnapshotJSON
	}

	return nil
}

// BuildSnapshot creates a new Snapshot with validation.
func BuildSnapshot(runID uuid.UUID, kind string, data json.RawMessage) (Snapshot, error) {
	snapshot := Snapshot{
		RunID:     runID,
		Kind:      kind,
		Data:      data,
		CreatedAt: time.Now(),
	}

	if err := snapshot.Validate(); err != nil {
		return Snapshot{}, err
	}

	return snapshot, nil
}
