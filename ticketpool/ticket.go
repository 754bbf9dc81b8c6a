package ticketpool

import (
	"time"
)

// Status is the lifecycle state of a Ticket.
type Status int

const (
	StatusAvailable Status = iota // In the pool, waiting for a customer.
	StatusSold                    // Withdrawn by a customer.
)

const (
	statusAvailableString = "available"
	statusSoldString      = "sold"
	statusUnknownString   = "unknown"
)

// String returns the wire form of the status ("available" or "sold").
func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return statusAvailableString
	case StatusSold:
		return statusSoldString
	default:
		return statusUnknownString
	}
}

// MarshalText encodes the status as its string form.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Ticket is a single unit produced by a vendor and withdrawn by a customer.
//
// ID, VendorID and CreatedAt are fixed at creation. Status moves from StatusAvailable
// to StatusSold exactly once, when the ticket leaves the pool.
type Ticket struct {
	ID        uint64    `json:"id"`
	VendorID  string    `json:"vendorId"`
	CreatedAt time.Time `json:"createdAt"`
	Status    Status    `json:"status"`
}

// IsSold reports whether the ticket has been withdrawn from its pool.
func (t Ticket) IsSold() bool {
	return t.Status == StatusSold
}
