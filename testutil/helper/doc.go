// Package helper provides test doubles shared by the ticket pool, simulation and event log tests.
//
// The spies capture log records, metric calls, tracing spans and pool events so tests can
// assert on observable side effects without a real backend.
package helper
