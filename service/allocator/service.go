package allocator

import (
	"context"
	"fmt"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/sirupsen/logrus"
	"github.com/viant/fluxgrid/model/job"
	"github.com/viant/fluxgrid/model/task"
	jobdao "github.com/viant/fluxgrid/service/dao/job"
	"github.com/viant/fluxgrid/service/event"
	"github.com/viant/fluxgrid/service/metrics"
	"github.com/viant/fluxgrid/service/worker"
	"github.com/viant/fluxgrid/tracing"
)

var (
	// ErrInsufficientResources is returned when the pool cannot hold every vertex.
	ErrInsufficientResources = fmt.Errorf("insufficient resources: %w", errdefs.ErrResourceExhausted)
	// ErrInvalidContact is returned for a contact index outside the submission.
	ErrInvalidContact = fmt.Errorf("contact out of range: %w", errdefs.ErrInvalidArgument)
	// ErrInvalidClient is returned for an empty client id or one that cannot be embedded in a task id.
	ErrInvalidClient = fmt.Errorf("invalid client id: %w", errdefs.ErrInvalidArgument)
)

// Service allocates submitted vertices to workers.
type Service struct {
	pool    *worker.Pool
	jobs    jobdao.Service
	events  *event.Service
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
}

// New creates an allocator over the pool and registry.
func New(pool *worker.Pool, jobs jobdao.Service, opts ...Option) *Service {
	ret := &Service{pool: pool, jobs: jobs, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Allocate binds every vertex to a worker slot and installs the job as the
// client's registry entry, replacing any earlier one. It returns the task
// identities in vertex order. Either every vertex is placed or none is.
func (s *Service) Allocate(ctx context.Context, clientID string, vertices []task.Vertex) (ids []string, err error) {
	ctx, span := tracing.StartSpan(ctx, "allocator.Allocate", tracing.KindInternal)
	span.WithAttributes(map[string]string{"client": clientID}).WithInt("vertices", len(vertices))
	defer func() { tracing.EndSpan(span, err) }()

	logger := s.logger.WithField("client", clientID)
	if err = validate(clientID, vertices); err != nil {
		s.metrics.Allocation(metrics.ResultInvalid)
		return nil, err
	}

	tasks, err := s.place(ctx, clientID, vertices)
	if err != nil {
		if errdefs.IsResourceExhausted(err) {
			s.metrics.Allocation(metrics.ResultInsufficient)
			event.Publish(s.events, &event.Context{EventType: event.AllocationFailed, ClientID: clientID, Service: "allocator"},
				event.Rejected{Vertices: len(vertices), Reason: err.Error()})
			logger.WithField("vertices", len(vertices)).Warn("allocation rejected")
		}
		return nil, err
	}

	ids = make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	s.metrics.Allocation(metrics.ResultOK)
	event.Publish(s.events, &event.Context{EventType: event.JobAllocated, ClientID: clientID, Service: "allocator"},
		event.Allocated{TaskIDs: ids})
	logger.WithField("tasks", len(ids)).Info("job allocated")
	return ids, nil
}

// place runs first-fit under the worker locks and commits the registry
// entry before releasing them.
func (s *Service) place(ctx context.Context, clientID string, vertices []task.Vertex) ([]*task.Task, error) {
	var locked []*worker.Worker
	defer func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}()

	tasks := make([]*task.Task, 0, len(vertices))
	owners := make([]*worker.Worker, 0, len(vertices))
	for _, w := range s.pool.Workers() {
		if len(tasks) == len(vertices) {
			break
		}
		w.Lock()
		locked = append(locked, w)
		for w.Availability() > 0 && len(tasks) < len(vertices) {
			vertexID := len(tasks)
			t := task.New(clientID, vertexID, w.ID, vertices[vertexID].Program)
			w.Enqueue(t)
			tasks = append(tasks, t)
			owners = append(owners, w)
		}
	}

	rollback := func() {
		for i, t := range tasks {
			owners[i].Withdraw(t)
		}
	}
	if len(tasks) < len(vertices) {
		rollback()
		return nil, fmt.Errorf("client %q: placed %d of %d: %w", clientID, len(tasks), len(vertices), ErrInsufficientResources)
	}

	for i, t := range tasks {
		for _, contact := range vertices[i].Contacts {
			t.Contacts = append(t.Contacts, tasks[contact].ID)
		}
	}
	if err := s.jobs.Save(ctx, job.New(clientID, tasks)); err != nil {
		rollback()
		return nil, fmt.Errorf("client %q: failed to save job: %w", clientID, err)
	}
	return tasks, nil
}

func validate(clientID string, vertices []task.Vertex) error {
	if clientID == "" || strings.Contains(clientID, task.Separator) {
		return fmt.Errorf("%q: %w", clientID, ErrInvalidClient)
	}
	for i, vertex := range vertices {
		for _, contact := range vertex.Contacts {
			if contact < 0 || contact >= len(vertices) {
				return fmt.Errorf("client %q: vertex %d: contact %d of %d: %w", clientID, i, contact, len(vertices), ErrInvalidContact)
			}
		}
	}
	return nil
}
