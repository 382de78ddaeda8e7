// Package job defines the client/job registry: the latest task list of every
// client, in submitted vertex order.
package job

import (
	"context"

	"github.com/viant/fluxgrid/model/job"
	"github.com/viant/fluxgrid/model/task"
	"github.com/viant/fluxgrid/service/dao"
)

// Service is the client/job registry.
type Service interface {
	dao.Service[string, job.Job]

	// TaskIDs returns the current task identities of the client's job.
	TaskIDs(ctx context.Context, clientID string) ([]string, error)

	// Pointers returns the task locators of the client's job.
	Pointers(ctx context.Context, clientID string) ([]task.Pointer, error)

	// Program resolves the payload of a task by its composite identity. The
	// embedded worker is not checked against the current assignment.
	Program(ctx context.Context, taskID string) (string, error)

	// Cancel clears the client's task list, keeping the entry.
	Cancel(ctx context.Context, clientID string) error

	// Mutate applies fn to every job atomically with respect to readers.
	Mutate(ctx context.Context, fn func(j *job.Job)) error
}
