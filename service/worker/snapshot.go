package worker

import "time"

// Snapshot is a read-only view of a worker.
type Snapshot struct {
	ID       string    `json:"worker_id"`
	Cores    int       `json:"n_cores"`
	Active   []string  `json:"active_tasks"`
	Pending  []string  `json:"pending_tasks"`
	LastSeen time.Time `json:"last_seen"`
	Deadline time.Time `json:"deadline,omitempty"`
}

// Used returns the number of occupied slots.
func (s *Snapshot) Used() int {
	return len(s.Active) + len(s.Pending)
}
