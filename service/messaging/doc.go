// Package messaging defines the queue abstraction used to hand asynchronous
// work (liveness expiries) from timers to the engine.  The memory
// sub-package provides the in-process implementation.
package messaging
