package simulation

import "github.com/ticketpool/ticketpool-simulation-go/ticketpool"

// WithAgentPorts replaces the pool ports handed to vendors and customers.
func WithAgentPorts(ports func(pool *ticketpool.Pool) (Producer, Consumer)) CoordinatorOption {
	return func(c *Coordinator) error {
		c.agentPorts = ports

		return nil
	}
}
