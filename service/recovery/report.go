package recovery

// Report describes one recovery pass.
type Report struct {
	WorkerID string `json:"worker_id"`
	Cause    string `json:"cause"`
	// Migrated maps each moved task's previous identity to its new one.
	Migrated map[string]string `json:"migrated"`
	// Resent lists tasks whose contacts changed and that will be redelivered.
	Resent []string `json:"resent"`
	// Cancelled lists the clients whose jobs were cancelled.
	Cancelled []string `json:"cancelled"`
	// Stopped counts, per cancelled client, the tasks that were withdrawn,
	// flagged for cancellation or lost with the worker.
	Stopped map[string]int `json:"stopped,omitempty"`
	// Dropped counts cancelling tasks that died with the worker.
	Dropped int `json:"dropped"`
}

// Complete reports whether every task of the worker found a new slot.
func (r *Report) Complete() bool {
	return len(r.Cancelled) == 0
}
