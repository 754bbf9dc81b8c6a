// Package simulation runs vendor and customer agents against a shared ticket pool.
//
// A Coordinator owns one ticketpool.Pool per run together with its agents. Each agent is its own
// goroutine on its own ticker and issues exactly one pool call per tick. Stopping is cooperative:
// agents observe cancellation at their next interval boundary and a pool call already in progress
// always completes.
//
// Coordinator states:
//
//	Idle --Start--> Running --Stop--> Stopped --Reset--> Idle
//	                Running --all tickets sold--> Idle
//
// A failing agent stops the whole run, leaving the coordinator Stopped with Err() set.
package simulation
