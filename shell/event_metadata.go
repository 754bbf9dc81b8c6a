package shell

import (
	"errors"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
)

// ErrMappingToEventMetadataFailed is returned when metadata conversion fails.
var ErrMappingToEventMetadataFailed = errors.New("mapping to event metadata failed")

// EventMetadata ties a stored event to its run.
// Sequence numbers the events of one run in the order they reached the sink.
type EventMetadata struct {
	RunID    string `json:"runId"`
	Sequence uint64 `json:"sequence"`
}

// BuildEventMetadata creates EventMetadata for the given run.
func BuildEventMetadata(runID uuid.UUID, sequence uint64) EventMetadata {
	return EventMetadata{
		RunID:    runID.String(),
		Sequence: sequence,
	}
}

// EventMetadataFrom extracts EventMetadata from a StorableEvent.
func EventMetadataFrom(storableEvent eventlog.StorableEvent) (EventMetadata, error) {
	metadata := new(EventMetadata)
	err := jsoniter.ConfigFastest.Unmarshal(storableEvent.MetadataJSON, metadata)
	if err != nil {
		return EventMetadata{}, errors.Join(ErrMappingToEventMetadataFailed, err)
	}

	return *metadata, nil
}
