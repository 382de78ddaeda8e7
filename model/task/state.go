package task

// State represents the dispatch state of a task on its worker.
//
//	scheduled ──heartbeat──▶ active ──contacts rewritten──▶ needsResend ──heartbeat──▶ active
//	    │                      │
//	    └──────job cancelled───┴──▶ cancelling (sent once, then forgotten)
type State string

const (
	// StateScheduled is a pending task never sent to its worker.
	StateScheduled State = "scheduled"
	// StateActive is a task the worker has been given and is running.
	StateActive State = "active"
	// StateNeedsResend is a pending task whose contacts changed since it was sent.
	StateNeedsResend State = "needsResend"
	// StateCancelling is a pending task the worker must terminate.
	StateCancelling State = "cancelling"
)

// IsPending reports whether the state belongs to the pending queue.
func (s State) IsPending() bool {
	switch s {
	case StateScheduled, StateNeedsResend, StateCancelling:
		return true
	}
	return false
}

// Dispatched returns the state a task takes once handed to its worker.
func (s State) Dispatched() State {
	if s == StateCancelling {
		return StateCancelling
	}
	return StateActive
}
