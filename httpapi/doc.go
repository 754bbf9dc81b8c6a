// Package httpapi exposes a simulation.Coordinator over HTTP.
//
// Routes:
//
//	GET  /api/health                 liveness
//	GET  /api/simulation/statistics  state, run id and pool statistics
//	POST /api/simulation/start       start a run; an optional JSON body overrides the base config
//	POST /api/simulation/stop        stop the running simulation
//	POST /api/simulation/reset       discard the last run
//
// Bodies are JSON. Errors are returned as {"error": "..."} with 400 for invalid configs
// and 409 for operations the coordinator does not allow in its current state.
package httpapi
