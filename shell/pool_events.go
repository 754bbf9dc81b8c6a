package shell

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/ticketpool/ticketpool-simulation-go/eventlog"
	"github.com/ticketpool/ticketpool-simulation-go/ticketpool"
)

const (
	// TicketProducedEventType is the stored event type for ticketpool.EventKindProduced.
	TicketProducedEventType = "TicketProduced"

	// TicketSoldEventType is the stored event type for ticketpool.EventKindSold.
	TicketSoldEventType = "TicketSold"

	// PayloadKeyRunID is the payload field that every stored pool event carries, usable as a filter predicate.
	PayloadKeyRunID = "runId"

	// PayloadKeyVendorID is the payload field of TicketProduced holding the vendor.
	PayloadKeyVendorID = "vendorId"

	// PayloadKeyCustomerID is the payload field of TicketSold holding the customer.
	PayloadKeyCustomerID = "customerId"
)

var (
	// ErrMappingToStorableEventFailed is returned when a pool event cannot be serialized.
	ErrMappingToStorableEventFailed = errors.New("mapping to storable event failed")

	// ErrMappingToPoolEventFailed is returned when a stored event cannot be turned back into a pool event.
	ErrMappingToPoolEventFailed = errors.New("mapping to pool event failed")

	// ErrUnknownEventKind is returned for pool events that have no stored representation.
	ErrUnknownEventKind = errors.New("unknown event kind")

	// ErrUnknownEventType is returned for stored events that are not pool events.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrLoadingRunEventsFailed is returned when the events of a run cannot be read.
	ErrLoadingRunEventsFailed = errors.New("loading run events failed")
)

// TicketProduced is the stored payload of a produced ticket.
type TicketProduced struct {
	RunID      string    `json:"runId"`
	TicketID   uint64    `json:"ticketId"`
	VendorID   string    `json:"vendorId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// TicketSold is the stored payload of a sold ticket.
type TicketSold struct {
	RunID      string    `json:"runId"`
	TicketID   uint64    `json:"ticketId"`
	CustomerID string    `json:"customerId"`
	VIP        bool      `json:"vip"`
	OccurredAt time.Time `json:"occurredAt"`
}

// StorableEventFrom converts a pool event and its metadata to a StorableEvent.
// The run id is copied from the metadata into the payload so runs can be filtered by payload predicate.
func StorableEventFrom(event ticketpool.Event, metadata EventMetadata) (eventlog.StorableEvent, error) {
	var (
		eventType string
		payload   any
	)

	switch event.Kind {
	case ticketpool.EventKindProduced:
		eventType = TicketProducedEventType
		payload = TicketProduced{
			RunID:      metadata.RunID,
			TicketID:   event.TicketID,
			VendorID:   event.ActorID,
			OccurredAt: event.OccurredAt,
		}

	case ticketpool.EventKindSold:
		eventType = TicketSoldEventType
		payload = TicketSold{
			RunID:      metadata.RunID,
			TicketID:   event.TicketID,
			CustomerID: event.ActorID,
			VIP:        event.VIP,
			OccurredAt: event.OccurredAt,
		}

	default:
		return eventlog.StorableEvent{}, errors.Join(ErrMappingToStorableEventFailed, ErrUnknownEventKind)
	}

	payloadJSON, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(payload)
	if err != nil {
		return eventlog.StorableEvent{}, errors.Join(ErrMappingToStorableEventFailed, err)
	}

	metadataJSON, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(metadata)
	if err != nil {
		return eventlog.StorableEvent{}, errors.Join(ErrMappingToStorableEventFailed, err)
	}

	storableEvent, err := eventlog.BuildStorableEvent(eventType, event.OccurredAt, payloadJSON, metadataJSON)
	if err != nil {
		return eventlog.StorableEvent{}, errors.Join(ErrMappingToStorableEventFailed, err)
	}

	return storableEvent, nil
}

// PoolEventsFrom converts multiple StorableEvents to pool events.
func PoolEventsFrom(storableEvents eventlog.StorableEvents) ([]ticketpool.Event, error) {
	events := make([]ticketpool.Event, 0, len(storableEvents))

	for _, storableEvent := range storableEvents {
		event, err := PoolEventFrom(storableEvent)
		if err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	return events, nil
}

// PoolEventFrom converts a StorableEvent back to the pool event it was created from.
func PoolEventFrom(storableEvent eventlog.StorableEvent) (ticketpool.Event, error) {
	switch storableEvent.EventType {
	case TicketProducedEventType:
		payload := new(TicketProduced)
		if err := jsoniter.ConfigFastest.Unmarshal(storableEvent.PayloadJSON, payload); err != nil {
			return ticketpool.Event{}, errors.Join(ErrMappingToPoolEventFailed, err)
		}

		return ticketpool.Event{
			Kind:       ticketpool.EventKindProduced,
			TicketID:   payload.TicketID,
			ActorID:    payload.VendorID,
			OccurredAt: payload.OccurredAt,
		}, nil

	case TicketSoldEventType:
		payload := new(TicketSold)
		if err := jsoniter.ConfigFastest.Unmarshal(storableEvent.PayloadJSON, payload); err != nil {
			return ticketpool.Event{}, errors.Join(ErrMappingToPoolEventFailed, err)
		}

		return ticketpool.Event{
			Kind:       ticketpool.EventKindSold,
			TicketID:   payload.TicketID,
			ActorID:    payload.CustomerID,
			VIP:        payload.VIP,
			OccurredAt: payload.OccurredAt,
		}, nil

	default:
		return ticketpool.Event{}, errors.Join(ErrMappingToPoolEventFailed, ErrUnknownEventType)
	}
}

// RunEventsFilter selects all pool events of one run.
func RunEventsFilter(runID uuid.UUID) eventlog.Filter {
	return eventlog.BuildFilter().
		AnyEventTypeOf(TicketProducedEventType, TicketSoldEventType).
		AllPredicatesOf(eventlog.P(PayloadKeyRunID, runID.String())).
		Finalize()
}

// CustomerPurchasesFilter selects the tickets one customer bought during one run.
func CustomerPurchasesFilter(runID uuid.UUID, customerID string) eventlog.Filter {
	return eventlog.BuildFilter().
		AnyEventTypeOf(TicketSoldEventType).
		AllPredicatesOf(
			eventlog.P(PayloadKeyRunID, runID.String()),
			eventlog.P(PayloadKeyCustomerID, customerID),
		).
		Finalize()
}

// LoadEvents reads the events matching filter and maps them to pool events, in log order.
func LoadEvents(ctx context.Context, events QueriesEvents, filter eventlog.Filter) ([]ticketpool.Event, error) {
	storableEvents, _, err := events.Query(ctx, filter)
	if err != nil {
		return nil, errors.Join(ErrLoadingRunEventsFailed, err)
	}

	poolEvents, err := PoolEventsFrom(storableEvents)
	if err != nil {
		return nil, errors.Join(ErrLoadingRunEventsFailed, err)
	}

	return poolEvents, nil
}
