package simulation

import (
	"time"

	"github.com/google/uuid"

	"github.com/ticketpool/ticketpool-simulation-go/ticketpool"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed" // every ticket was sold
	OutcomeStopped   Outcome = "stopped"   // Stop was called
	OutcomeFailed    Outcome = "failed"    // an agent failed
)

// AgentRole distinguishes vendors from customers in an AgentSummary.
type AgentRole string

const (
	AgentRoleVendor   AgentRole = "vendor"
	AgentRoleCustomer AgentRole = "customer"
)

// AgentSummary holds the counters of one agent.
// Succeeded counts added (vendor) or purchased (customer) tickets, Skipped the cycles without effect.
type AgentSummary struct {
	ID        string    `json:"id"`
	Role      AgentRole `json:"role"`
	VIP       bool      `json:"vip,omitempty"`
	Succeeded int64     `json:"succeeded"`
	Skipped   int64     `json:"skipped"`
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID      uuid.UUID             `json:"runId"`
	Config     Config                `json:"config"`
	Outcome    Outcome               `json:"outcome"`
	StartedAt  time.Time             `json:"startedAt"`
	FinishedAt time.Time             `json:"finishedAt"`
	Statistics ticketpool.Statistics `json:"statistics"`
	Agents     []AgentSummary        `json:"agents"`
	Error      string                `json:"error,omitempty"`
}

// Duration returns the wall-clock time between start and finish.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
