// Package shell connects the ticket pool simulation to its infrastructure.
//
// It maps pool events to storable events and back, persists them through the event log with
// batching and exponential backoff, logs them as structured records, and stores run summaries
// as snapshots. The simulation and pool packages never import it; cmd/ticketsim wires it in.
//
// In Domain-Driven Design or Hexagonal Architecture terminology, this would be
// called the 'infrastructure' layer.
package shell
