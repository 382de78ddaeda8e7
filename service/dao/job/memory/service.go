package memory

import (
	"context"
	"fmt"

	"github.com/viant/fluxgrid/model/job"
	"github.com/viant/fluxgrid/model/task"
	"github.com/viant/fluxgrid/service/dao"
	"github.com/viant/fluxgrid/service/dao/criteria"
	jobdao "github.com/viant/fluxgrid/service/dao/job"
	"github.com/viant/fluxgrid/service/dao/store"
)

// Service implements an in-memory client/job registry. It stores copies of
// the saved jobs; the worker queues own the live tasks.
type Service struct {
	*store.MemoryStore[string, job.Job]
}

// Compile-time check that Service implements the registry interface.
var _ jobdao.Service = (*Service)(nil)

// List returns copies of the jobs, optionally narrowed by a ClientID parameter.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*job.Job, error) {
	jobs, err := s.MemoryStore.List(ctx)
	if err != nil {
		return nil, err
	}
	out := jobs[:0]
	for _, j := range jobs {
		if criteria.Match("ClientID", j.ClientID, parameters) {
			out = append(out, j)
		}
	}
	return out, nil
}

// TaskIDs returns the current task identities in vertex order.
func (s *Service) TaskIDs(_ context.Context, clientID string) ([]string, error) {
	var ret []string
	err := s.View(clientID, func(j *job.Job) error {
		ret = j.IDs()
		return nil
	})
	return ret, err
}

// Pointers returns the task locators in vertex order.
func (s *Service) Pointers(_ context.Context, clientID string) ([]task.Pointer, error) {
	var ret []task.Pointer
	err := s.View(clientID, func(j *job.Job) error {
		ret = j.Pointers()
		return nil
	})
	return ret, err
}

// Program resolves a task payload by client and vertex.
func (s *Service) Program(_ context.Context, taskID string) (string, error) {
	pointer, err := task.ParseID(taskID)
	if err != nil {
		return "", err
	}
	var program string
	err = s.View(pointer.ClientID, func(j *job.Job) error {
		if pointer.VertexID >= len(j.Tasks) {
			return fmt.Errorf("task %q: %w", taskID, dao.ErrNotFound)
		}
		program = j.Tasks[pointer.VertexID].Program
		return nil
	})
	return program, err
}

// Cancel clears the client's task list.
func (s *Service) Cancel(_ context.Context, clientID string) error {
	return s.Update(clientID, func(j *job.Job) error {
		j.Tasks = []*task.Task{}
		return nil
	})
}

// Mutate applies fn to every job under one write lock.
func (s *Service) Mutate(_ context.Context, fn func(j *job.Job)) error {
	s.MemoryStore.Mutate(fn)
	return nil
}

// New creates an empty registry.
func New() *Service {
	return &Service{
		MemoryStore: store.NewMemoryStore[string, job.Job](
			func(j *job.Job) string { return j.ClientID },
			func(j *job.Job) *job.Job { return j.Clone() },
		),
	}
}
