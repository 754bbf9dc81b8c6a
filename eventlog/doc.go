// Package eventlog provides the storage abstractions for the ticket pool's audit trail.
//
// A simulation run produces two kinds of durable records:
//   - StorableEvent: one row per successful pool mutation (ticket produced, ticket sold)
//   - Snapshot: one row per run and kind, e.g. the final run summary
//
// Events can be read back with a Filter that narrows by event type, string-valued
// JSON payload predicates and an occurred-at time range:
//
//	filter := eventlog.BuildFilter().
//		AnyEventTypeOf("TicketSold").
//		AllPredicatesOf(eventlog.P("RunID", runID.String()), eventlog.P("CustomerID", "customer-1")).
//		Finalize()
//
//	events, maxSeq, err := log.Query(ctx, filter)
//
// Concrete storage lives in sub packages, see postgresengine.
package eventlog
