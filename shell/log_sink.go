package shell

import (
	"github.com/google/uuid"

	"github.com/ticketpool/ticketpool-simulation-go/simulation"
	"github.com/ticketpool/ticketpool-simulation-go/ticketpool"
)

const (
	logMsgTicketAdded = "ticket added by vendor"
	logMsgTicketSold  = "ticket sold to customer"
	logAttrVendorID   = "vendor_id"
	logAttrCustomerID = "customer_id"
	logAttrVIP        = "vip"
	logAttrOccurredAt = "occurred_at"
)

// LogSink writes every pool event as a structured info record.
// It is the event sink used when no database is configured.
type LogSink struct {
	logger Logger
}

// NewLogSink creates a LogSink. A nil logger makes it discard everything.
func NewLogSink(logger Logger) *LogSink {
	return &LogSink{logger: logger}
}

// SinkForRun returns a ticketpool.EventSink that tags each record with runID.
func (s *LogSink) SinkForRun(runID uuid.UUID) ticketpool.EventSink {
	return ticketpool.EventSinkFunc(func(event ticketpool.Event) {
		if s.logger == nil {
			return
		}

		switch event.Kind {
		case ticketpool.EventKindProduced:
			s.logger.Info(logMsgTicketAdded,
				logAttrRunID, runID.String(),
				logAttrTicketID, event.TicketID,
				logAttrVendorID, event.ActorID,
				logAttrOccurredAt, event.OccurredAt)

		case ticketpool.EventKindSold:
			s.logger.Info(logMsgTicketSold,
				logAttrRunID, runID.String(),
				logAttrTicketID, event.TicketID,
				logAttrCustomerID, event.ActorID,
				logAttrVIP, event.VIP,
				logAttrOccurredAt, event.OccurredAt)
		}
	})
}

// MultiSinkProvider hands every run a sink that forwards each event to all providers' sinks, in order.
type MultiSinkProvider []simulation.RunSinkProvider

// SinkForRun implements simulation.RunSinkProvider.
func (m MultiSinkProvider) SinkForRun(runID uuid.UUID) ticketpool.EventSink {
	sinks := make([]ticketpool.EventSink, 0, len(m))
	for _, provider := range m {
		sinks = append(sinks, provider.SinkForRun(runID))
	}

	return ticketpool.EventSinkFunc(func(event ticketpool.Event) {
		for _, sink := range sinks {
			sink.Emit(event)
		}
	})
}
