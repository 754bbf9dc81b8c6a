// Command ticketsim runs the ticket pool simulation from the command line or behind an HTTP API.
//
// Configuration comes from TICKETSIM_* environment variables; flags override the simulation settings.
// With TICKETSIM_POSTGRES_DSN set, pool events and run summaries are persisted to Postgres.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
