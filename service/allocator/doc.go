// Package allocator places a client's vertices onto worker slots. Workers are
// filled first-fit in registration order; a submission that does not fit is
// rolled back before any heartbeat can observe it.
package allocator
