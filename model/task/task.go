package task

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/containerd/errdefs"
)

// Separator joins the identity fields of a task id.
const Separator = "~"

// ErrMalformedID is returned when a composite task id cannot be decoded.
var ErrMalformedID = fmt.Errorf("task: malformed id: %w", errdefs.ErrInvalidArgument)

type (
	// Vertex is one node of a submitted graph: an opaque program and the
	// indices of the vertices it is allowed to contact.
	Vertex struct {
		Program  string `json:"program" yaml:"program"`
		Contacts []int  `json:"contacts" yaml:"contacts"`
	}

	// Task is a vertex of a client's job bound to a worker slot.
	Task struct {
		ID       string   `json:"task_id"`
		ClientID string   `json:"client_id"`
		VertexID int      `json:"vertex_id"`
		WorkerID string   `json:"worker_id"`
		Program  string   `json:"program"`
		Contacts []string `json:"contacts"`
		State    State    `json:"state"`
	}

	// Pointer locates a task without carrying its payload.
	Pointer struct {
		TaskID   string `json:"task_id"`
		ClientID string `json:"client_id"`
		VertexID int    `json:"vertex_id"`
		WorkerID string `json:"worker_id"`
	}
)

// NewID encodes the composite identity client~vertex~worker.
func NewID(clientID string, vertexID int, workerID string) string {
	return clientID + Separator + strconv.Itoa(vertexID) + Separator + workerID
}

// ParseID decodes a composite identity into a Pointer.
func ParseID(id string) (Pointer, error) {
	parts := strings.SplitN(id, Separator, 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return Pointer{}, fmt.Errorf("%q: %w", id, ErrMalformedID)
	}
	vertexID, err := strconv.Atoi(parts[1])
	if err != nil || vertexID < 0 {
		return Pointer{}, fmt.Errorf("%q: vertex %q: %w", id, parts[1], ErrMalformedID)
	}
	return Pointer{TaskID: id, ClientID: parts[0], VertexID: vertexID, WorkerID: parts[2]}, nil
}

// New creates a freshly scheduled task for the supplied vertex.
func New(clientID string, vertexID int, workerID string, program string) *Task {
	return &Task{
		ID:       NewID(clientID, vertexID, workerID),
		ClientID: clientID,
		VertexID: vertexID,
		WorkerID: workerID,
		Program:  program,
		Contacts: []string{},
		State:    StateScheduled,
	}
}

// Reassign binds the task to another worker and regenerates its identity.
// It returns the previous identity.
func (t *Task) Reassign(workerID string) string {
	prev := t.ID
	t.WorkerID = workerID
	t.ID = NewID(t.ClientID, t.VertexID, workerID)
	t.State = StateScheduled
	return prev
}

// RewriteContacts replaces every contact found in moves and reports whether
// anything changed.
func (t *Task) RewriteContacts(moves map[string]string) bool {
	changed := false
	for i, contact := range t.Contacts {
		if next, ok := moves[contact]; ok {
			t.Contacts[i] = next
			changed = true
		}
	}
	return changed
}

// Pointer returns the locator of this task.
func (t *Task) Pointer() Pointer {
	return Pointer{TaskID: t.ID, ClientID: t.ClientID, VertexID: t.VertexID, WorkerID: t.WorkerID}
}

// Update reports whether the worker must replace its copy of the task.
func (t *Task) Update() bool {
	return t.State == StateNeedsResend
}

// Cancel reports whether the worker must terminate the task.
func (t *Task) Cancel() bool {
	return t.State == StateCancelling
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Contacts = make([]string, len(t.Contacts))
	copy(clone.Contacts, t.Contacts)
	return &clone
}
