package simulation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ticketpool/ticketpool-simulation-go/ticketpool"
)

const (
	logMsgVendorSkipped    = "vendor skipped cycle, pool full or all tickets produced"
	logMsgCustomerSkipped  = "customer skipped cycle, pool empty"
	logMsgCustomerPurchase = "customer purchased ticket"
	logAttrAgentID         = "agent_id"
	logAttrTicketID        = "ticket_id"
	logAttrVIP             = "vip"
)

// Producer is the part of the pool a vendor talks to.
type Producer interface {
	AddTicket(vendorID string) bool
}

// Consumer is the part of the pool a customer talks to.
type Consumer interface {
	RemoveTicket(customerID string, vip bool) (ticketpool.Ticket, bool)
}

// VendorAgent adds one ticket per interval.
type VendorAgent struct {
	id       string
	interval time.Duration
	producer Producer
	logger   Logger

	added    atomic.Int64
	rejected atomic.Int64
}

// NewVendorAgent creates a vendor. The logger may be nil.
func NewVendorAgent(id string, interval time.Duration, producer Producer, logger Logger) *VendorAgent {
	return &VendorAgent{
		id:       id,
		interval: interval,
		producer: producer,
		logger:   logger,
	}
}

// ID returns the vendor id that is stamped on every ticket this vendor produces.
func (a *VendorAgent) ID() string {
	return a.id
}

// Interval returns the time between two AddTicket calls.
func (a *VendorAgent) Interval() time.Duration {
	return a.interval
}

// Run calls AddTicket once per interval until ctx is canceled.
// Cancellation is checked at every interval boundary, a call that has started always completes.
func (a *VendorAgent) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for waitForTick(ctx, ticker) {
		if a.producer.AddTicket(a.id) {
			a.added.Add(1)
			continue
		}

		a.rejected.Add(1)

		if a.logger != nil {
			a.logger.Debug(logMsgVendorSkipped, logAttrAgentID, a.id)
		}
	}
}

// Summary returns the vendor's counters so far.
func (a *VendorAgent) Summary() AgentSummary {
	return AgentSummary{
		ID:        a.id,
		Role:      AgentRoleVendor,
		Succeeded: a.added.Load(),
		Skipped:   a.rejected.Load(),
	}
}

// CustomerAgent removes one ticket per interval. VIP customers get the oldest ticket, regular ones the newest.
type CustomerAgent struct {
	id       string
	interval time.Duration
	vip      bool
	consumer Consumer
	logger   Logger

	purchased atomic.Int64
	missed    atomic.Int64
}

// NewCustomerAgent creates a customer. The logger may be nil.
func NewCustomerAgent(id string, interval time.Duration, vip bool, consumer Consumer, logger Logger) *CustomerAgent {
	return &CustomerAgent{
		id:       id,
		interval: interval,
		vip:      vip,
		consumer: consumer,
		logger:   logger,
	}
}

// ID returns the customer id.
func (a *CustomerAgent) ID() string {
	return a.id
}

// Interval returns the time between two RemoveTicket calls.
func (a *CustomerAgent) Interval() time.Duration {
	return a.interval
}

// VIP reports whether the customer has priority access.
func (a *CustomerAgent) VIP() bool {
	return a.vip
}

// Run calls RemoveTicket once per interval until ctx is canceled.
// Cancellation is checked at every interval boundary, a call that has started always completes.
func (a *CustomerAgent) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for waitForTick(ctx, ticker) {
		ticket, ok := a.consumer.RemoveTicket(a.id, a.vip)
		if !ok {
			a.missed.Add(1)

			if a.logger != nil {
				a.logger.Debug(logMsgCustomerSkipped, logAttrAgentID, a.id, logAttrVIP, a.vip)
			}

			continue
		}

		a.purchased.Add(1)

		if a.logger != nil {
			a.logger.Debug(logMsgCustomerPurchase, logAttrAgentID, a.id, logAttrTicketID, ticket.ID, logAttrVIP, a.vip)
		}
	}
}

// Summary returns the customer's counters so far.
func (a *CustomerAgent) Summary() AgentSummary {
	return AgentSummary{
		ID:        a.id,
		Role:      AgentRoleCustomer,
		VIP:       a.vip,
		Succeeded: a.purchased.Load(),
		Skipped:   a.missed.Load(),
	}
}

// waitForTick blocks until the next tick and reports whether the agent should act on it.
// A tick that races with cancellation is dropped, so no pool call starts after ctx is done.
func waitForTick(ctx context.Context, ticker *time.Ticker) bool {
	select {
	case <-ctx.Done():
		return false
	case <-ticker.C:
		return ctx.Err() == nil
	}
}
