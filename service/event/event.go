package event

import "time"

// Type names a lifecycle event.
type Type string

const (
	WorkerRegistered   Type = "workerRegistered"
	WorkerDeregistered Type = "workerDeregistered"
	JobAllocated       Type = "jobAllocated"
	AllocationFailed   Type = "allocationFailed"
	TasksMigrated      Type = "tasksMigrated"
	JobCancelled       Type = "jobCancelled"
)

type Context struct {
	EventType Type   `json:"eventType"`
	WorkerID  string `json:"workerID,omitempty"`
	ClientID  string `json:"clientID,omitempty"`
	Service   string `json:"service"`
}

type Event[T any] struct {
	Context   *Context  `json:"context"`
	CreatedAt time.Time `json:"createdAt"`
	Data      T         `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Data:      data,
	}
}

type (
	// Registered is the payload of WorkerRegistered.
	Registered struct {
		Cores int `json:"n_cores"`
	}

	// Deregistered is the payload of WorkerDeregistered.
	Deregistered struct {
		Cause string `json:"cause"`
	}

	// Allocated is the payload of JobAllocated.
	Allocated struct {
		TaskIDs []string `json:"task_ids"`
	}

	// Rejected is the payload of AllocationFailed.
	Rejected struct {
		Vertices int    `json:"vertices"`
		Reason   string `json:"reason"`
	}

	// Migrated is the payload of TasksMigrated, keyed by previous identity.
	Migrated struct {
		Moves map[string]string `json:"moves"`
	}

	// Cancelled is the payload of JobCancelled. Tasks counts the job's tasks
	// withdrawn, flagged for cancellation or lost with the worker.
	Cancelled struct {
		Tasks int `json:"tasks"`
	}
)
