package job

import "github.com/viant/fluxgrid/model/task"

// Job is the registry entry of a client: its tasks in submitted vertex order.
// An empty task list marks a cancelled job.
type Job struct {
	ClientID string       `json:"client_id"`
	Tasks    []*task.Task `json:"tasks"`
}

// New creates a job entry.
func New(clientID string, tasks []*task.Task) *Job {
	if tasks == nil {
		tasks = []*task.Task{}
	}
	return &Job{ClientID: clientID, Tasks: tasks}
}

// IDs returns the current task identities in vertex order.
func (j *Job) IDs() []string {
	ret := make([]string, len(j.Tasks))
	for i, t := range j.Tasks {
		ret[i] = t.ID
	}
	return ret
}

// Pointers returns the task locators in vertex order.
func (j *Job) Pointers() []task.Pointer {
	ret := make([]task.Pointer, len(j.Tasks))
	for i, t := range j.Tasks {
		ret[i] = t.Pointer()
	}
	return ret
}

// Cancelled reports whether the job lost its tasks.
func (j *Job) Cancelled() bool {
	return len(j.Tasks) == 0
}

// Clone returns a deep copy.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	tasks := make([]*task.Task, len(j.Tasks))
	for i, t := range j.Tasks {
		tasks[i] = t.Clone()
	}
	return &Job{ClientID: j.ClientID, Tasks: tasks}
}
