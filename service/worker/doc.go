// Package worker implements the worker resource tracker: per-worker core
// accounting with active and pending task queues, heartbeat reconciliation
// and a single-shot liveness timer that publishes an Expiry when a worker
// goes silent.  The Pool keeps workers in registration order, which is the
// global lock order for operations spanning several workers.
package worker
