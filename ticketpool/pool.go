package ticketpool

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/emirpasic/gods/lists/doublylinkedlist"
)

var (
	// ErrInvalidMaxCapacity is returned when a pool is configured with a non-positive capacity.
	ErrInvalidMaxCapacity = errors.New("max capacity must be positive")

	// ErrInvalidTotalTickets is returned when a pool is configured with a non-positive total.
	ErrInvalidTotalTickets = errors.New("total tickets must be positive")
)

const (
	metricTicketsProduced  = "ticketpool_tickets_produced_total"
	metricTicketsSold      = "ticketpool_tickets_sold_total"
	metricAddRejected      = "ticketpool_add_rejected_total"
	metricRemoveEmpty      = "ticketpool_remove_empty_total"
	metricTicketsAvailable = "ticketpool_tickets_available"
	metricSinkFailures     = "ticketpool_sink_failures_total"
	labelReason            = "reason"
	labelVIP               = "vip"
	labelKind              = "kind"
	logMsgAddRejected      = "ticket not added"
	logMsgRemoveEmpty      = "no ticket available"
	logMsgSinkFailed       = "event sink panicked, event dropped"
	logAttrVendorID        = "vendor_id"
	logAttrCustomerID      = "customer_id"
	logAttrReason          = "reason"
	logAttrVIP             = "vip"
	logAttrTicketID        = "ticket_id"
	logAttrKind            = "kind"
	logAttrPanic           = "panic"
)

// rejectReason explains why AddTicket returned false.
type rejectReason string

const (
	rejectReasonNone      rejectReason = ""
	rejectReasonExhausted rejectReason = "exhausted"
	rejectReasonCapacity  rejectReason = "capacity"
)

// Statistics is a consistent snapshot of a pool's counters.
type Statistics struct {
	Available  int  `json:"available"`
	Produced   int  `json:"produced"`
	Sold       int  `json:"sold"`
	IsComplete bool `json:"isComplete"`
}

// Pool is the bounded, shared ticket buffer.
//
// Vendors insert at the back. VIP customers withdraw from the front (oldest ticket first),
// regular customers withdraw from the back (newest ticket first).
//
// One mutex guards the queue and both counters, so AddTicket, RemoveTicket and Statistics
// are mutually exclusive. Neither mutation waits for space or tickets: a full pool rejects
// adds and an empty pool rejects removes, both via the return value.
type Pool struct {
	mu       sync.Mutex
	tickets  *doublylinkedlist.List // front = oldest, back = newest
	produced int
	sold     int

	maxCapacity  int
	totalTickets int

	sink             EventSink
	metricsCollector MetricsCollector
	logger           Logger
	now              func() time.Time
}

// NewPool creates an empty Pool.
// maxCapacity bounds the number of simultaneously available tickets,
// totalTickets bounds the number of tickets ever produced.
func NewPool(maxCapacity, totalTickets int, options ...Option) (*Pool, error) {
	if maxCapacity <= 0 {
		return nil, ErrInvalidMaxCapacity
	}

	if totalTickets <= 0 {
		return nil, ErrInvalidTotalTickets
	}

	p := &Pool{
		tickets:      doublylinkedlist.New(),
		maxCapacity:  maxCapacity,
		totalTickets: totalTickets,
		sink:         discardSink{},
		now:          time.Now,
	}

	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// MaxCapacity returns the configured capacity.
func (p *Pool) MaxCapacity() int {
	return p.maxCapacity
}

// TotalTickets returns the configured lifetime total.
func (p *Pool) TotalTickets() int {
	return p.totalTickets
}

// AddTicket produces a new ticket for vendorID and appends it to the back of the pool.
//
// It returns false, leaving the pool unchanged, when all tickets have been produced
// or the pool is at capacity. Both are normal backpressure signals.
func (p *Pool) AddTicket(vendorID string) bool {
	ticket, available, reason := p.tryAdd(vendorID)

	if reason != rejectReasonNone {
		p.recordAddRejected(reason)
		p.logDebug(logMsgAddRejected, logAttrVendorID, vendorID, logAttrReason, string(reason))

		return false
	}

	p.emit(Event{
		Kind:       EventKindProduced,
		TicketID:   ticket.ID,
		ActorID:    vendorID,
		OccurredAt: ticket.CreatedAt,
	})

	p.recordProduced(available)

	return true
}

// tryAdd holds the lock for the capacity check and the insertion.
func (p *Pool) tryAdd(vendorID string) (Ticket, int, rejectReason) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.produced >= p.totalTickets {
		return Ticket{}, p.tickets.Size(), rejectReasonExhausted
	}

	if p.tickets.Size() >= p.maxCapacity {
		return Ticket{}, p.tickets.Size(), rejectReasonCapacity
	}

	p.produced++

	ticket := Ticket{
		ID:        uint64(p.produced),
		VendorID:  vendorID,
		CreatedAt: p.now(),
		Status:    StatusAvailable,
	}

	p.tickets.Append(ticket)

	return ticket, p.tickets.Size(), rejectReasonNone
}

// RemoveTicket withdraws a ticket for customerID and marks it sold.
//
// A VIP customer receives the oldest available ticket, a regular customer the newest one.
// It returns false when the pool is empty, which is a normal condition.
// The returned ticket is no longer tracked by the pool.
func (p *Pool) RemoveTicket(customerID string, vip bool) (Ticket, bool) {
	ticket, available, ok := p.tryRemove(vip)

	if !ok {
		p.recordRemoveEmpty(vip)
		p.logDebug(logMsgRemoveEmpty, logAttrCustomerID, customerID, logAttrVIP, vip)

		return Ticket{}, false
	}

	p.emit(Event{
		Kind:       EventKindSold,
		TicketID:   ticket.ID,
		ActorID:    customerID,
		VIP:        vip,
		OccurredAt: p.now(),
	})

	p.recordSold(vip, available)

	return ticket, true
}

// tryRemove holds the lock for the emptiness check and the withdrawal.
func (p *Pool) tryRemove(vip bool) (Ticket, int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tickets.Empty() {
		return Ticket{}, 0, false
	}

	index := p.tickets.Size() - 1
	if vip {
		index = 0
	}

	value, _ := p.tickets.Get(index)
	p.tickets.Remove(index)

	ticket := value.(Ticket) //nolint:forcetypeassert // the list only ever holds Ticket values
	ticket.Status = StatusSold
	p.sold++

	return ticket, p.tickets.Size(), true
}

// Statistics returns the pool's counters as one consistent snapshot.
func (p *Pool) Statistics() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Statistics{
		Available:  p.tickets.Size(),
		Produced:   p.produced,
		Sold:       p.sold,
		IsComplete: p.sold >= p.totalTickets,
	}
}

// AvailableTickets returns a copy of the available tickets, oldest first.
func (p *Pool) AvailableTickets() []Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()

	tickets := make([]Ticket, 0, p.tickets.Size())
	for _, value := range p.tickets.Values() {
		tickets = append(tickets, value.(Ticket)) //nolint:forcetypeassert // the list only ever holds Ticket values
	}

	return tickets
}

// emit hands event to the sink. A panicking sink loses the event but never the mutation that produced it.
func (p *Pool) emit(event Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.recordSinkFailure(event.Kind)

			if p.logger != nil {
				p.logger.Warn(logMsgSinkFailed,
					logAttrKind, string(event.Kind),
					logAttrTicketID, event.TicketID,
					logAttrPanic, fmt.Sprint(recovered))
			}
		}
	}()

	p.sink.Emit(event)
}

func (p *Pool) logDebug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pool) recordProduced(available int) {
	if p.metricsCollector == nil {
		return
	}

	p.metricsCollector.IncrementCounter(metricTicketsProduced, nil)
	p.metricsCollector.RecordValue(metricTicketsAvailable, float64(available), nil)
}

func (p *Pool) recordSold(vip bool, available int) {
	if p.metricsCollector == nil {
		return
	}

	p.metricsCollector.IncrementCounter(metricTicketsSold, map[string]string{labelVIP: strconv.FormatBool(vip)})
	p.metricsCollector.RecordValue(metricTicketsAvailable, float64(available), nil)
}

func (p *Pool) recordAddRejected(reason rejectReason) {
	if p.metricsCollector == nil {
		return
	}

	p.metricsCollector.IncrementCounter(metricAddRejected, map[string]string{labelReason: string(reason)})
}

func (p *Pool) recordSinkFailure(kind EventKind) {
	if p.metricsCollector == nil {
		return
	}

	p.metricsCollector.IncrementCounter(metricSinkFailures, map[string]string{labelKind: string(kind)})
}

func (p *Pool) recordRemoveEmpty(vip bool) {
	if p.metricsCollector == nil {
		return
	}

	p.metricsCollector.IncrementCounter(metricRemoveEmpty, map[string]string{labelVIP: strconv.FormatBool(vip)})
}
