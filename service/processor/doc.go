// Package processor hosts the consumers that turn liveness expiries into
// recovery passes. Every consumer takes one expiry at a time from the queue
// fed by the worker liveness timers.
package processor
