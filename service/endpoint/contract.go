package endpoint

import "github.com/viant/fluxgrid/model/task"

type (
	RegisterRequest struct {
		WorkerID string `json:"worker_id"`
		Cores    int    `json:"n_cores"`
	}

	RegisterResponse struct {
		Success  bool   `json:"success"`
		WorkerID string `json:"worker_id"`
	}

	HeartbeatRequest struct {
		WorkerID    string   `json:"worker_id"`
		ActiveTasks []string `json:"active_tasks"`
	}

	HeartbeatResponse struct {
		NewTasks []*Task `json:"new_tasks"`
	}

	AllocateRequest struct {
		ClientID string        `json:"client_id"`
		NewTasks []task.Vertex `json:"new_tasks"`
	}

	AllocationResponse struct {
		TaskIDs []string `json:"task_ids"`
	}

	PointersResponse struct {
		TaskPointers []task.Pointer `json:"task_pointers"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}

	// Task is the wire form of a dispatched task; the state is flattened
	// into the update and cancel flags workers understand.
	Task struct {
		TaskID   string   `json:"task_id"`
		ClientID string   `json:"client_id"`
		VertexID int      `json:"vertex_id"`
		WorkerID string   `json:"worker_id"`
		Program  string   `json:"program"`
		Contacts []string `json:"contacts"`
		Update   bool     `json:"update"`
		Cancel   bool     `json:"cancel"`
	}
)

func newTask(t *task.Task) *Task {
	contacts := t.Contacts
	if contacts == nil {
		contacts = []string{}
	}
	return &Task{
		TaskID:   t.ID,
		ClientID: t.ClientID,
		VertexID: t.VertexID,
		WorkerID: t.WorkerID,
		Program:  t.Program,
		Contacts: contacts,
		Update:   t.Update(),
		Cancel:   t.Cancel(),
	}
}
