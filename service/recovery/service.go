package recovery

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"

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

// Service runs recovery passes.
type Service struct {
	pool    *worker.Pool
	jobs    jobdao.Service
	events  *event.Service
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
}

// New creates a recovery service over the pool and registry.
func New(pool *worker.Pool, jobs jobdao.Service, opts ...Option) *Service {
	ret := &Service{pool: pool, jobs: jobs, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Deregister removes the worker and migrates or cancels its tasks. It fails
// with worker.ErrUnknownWorker when the worker is not in the pool, which
// makes a second pass for the same worker a no-op.
//
// Once the worker is removed the pass is complete: a registry write error
// is returned together with the report, and events and metrics are still
// emitted.
func (s *Service) Deregister(ctx context.Context, workerID, cause string) (report *Report, err error) {
	ctx, span := tracing.StartSpan(ctx, "recovery.Deregister", tracing.KindInternal)
	span.WithAttributes(map[string]string{"worker": workerID, "cause": cause})
	defer func() { tracing.EndSpan(span, err) }()

	workers := s.pool.Workers()
	release := worker.LockAll(workers)
	report, cores, err := s.recover(ctx, workers, workerID, cause)
	release()
	if report == nil {
		return nil, err
	}
	if err != nil {
		err = fmt.Errorf("worker %q: registry update: %w", workerID, err)
		s.logger.WithField("worker", workerID).WithError(err).Error("registry out of date after recovery")
	}
	s.notify(report, cores)
	return report, err
}

func (s *Service) recover(ctx context.Context, workers []*worker.Worker, workerID, cause string) (*Report, int, error) {
	dead, ok := s.pool.Remove(workerID)
	if !ok {
		return nil, 0, fmt.Errorf("worker %q: %w", workerID, worker.ErrUnknownWorker)
	}
	if !held(workers, dead) {
		// registered after the snapshot; it sorts after every held worker
		dead.Lock()
		defer dead.Unlock()
	}
	report := &Report{WorkerID: workerID, Cause: cause, Migrated: map[string]string{}}

	var orphans []*task.Task
	for _, t := range dead.Retire() {
		if t.Cancel() {
			report.Dropped++
			continue
		}
		orphans = append(orphans, t)
	}

	var survivors []*worker.Worker
	for _, w := range workers {
		if w != dead {
			survivors = append(survivors, w)
		}
	}

	placed := 0
	for _, w := range survivors {
		for placed < len(orphans) && w.Availability() > 0 {
			t := orphans[placed]
			prev := t.Reassign(w.ID)
			w.Enqueue(t)
			report.Migrated[prev] = t.ID
			placed++
		}
	}

	if placed < len(orphans) {
		return report, dead.Cores, s.cancel(ctx, survivors, orphans, placed, report)
	}
	return report, dead.Cores, s.rewrite(ctx, survivors, report)
}

// rewrite applies the migration map to every queued task and registry entry.
func (s *Service) rewrite(ctx context.Context, survivors []*worker.Worker, report *Report) error {
	moves := report.Migrated
	if len(moves) == 0 {
		return nil
	}
	for _, w := range survivors {
		queued := append(append([]*task.Task(nil), w.Active()...), w.Pending()...)
		for _, t := range queued {
			if !t.RewriteContacts(moves) || t.Cancel() {
				continue
			}
			if t.State == task.StateScheduled {
				// never delivered, the worker will see the new contacts anyway
				continue
			}
			w.Requeue(t, task.StateNeedsResend)
			report.Resent = append(report.Resent, t.ID)
		}
	}
	return s.jobs.Mutate(ctx, func(j *job.Job) {
		for _, t := range j.Tasks {
			if next, ok := moves[t.ID]; ok {
				pointer, err := task.ParseID(next)
				if err == nil {
					t.Reassign(pointer.WorkerID)
				}
			}
			t.RewriteContacts(moves)
		}
	})
}

// cancel withdraws every task of the clients that lost an orphan and clears
// their registry entries. Tasks the workers already received are turned
// into cancellations so that the next heartbeat terminates them. Orphans
// before placed were migrated in this pass.
func (s *Service) cancel(ctx context.Context, survivors []*worker.Worker, orphans []*task.Task, placed int, report *Report) error {
	report.Stopped = map[string]int{}
	for i, t := range orphans {
		if _, ok := report.Stopped[t.ClientID]; !ok {
			report.Stopped[t.ClientID] = 0
			report.Cancelled = append(report.Cancelled, t.ClientID)
		}
		if i >= placed {
			// lost with the worker
			report.Stopped[t.ClientID]++
		}
	}
	sort.Strings(report.Cancelled)
	report.Migrated = map[string]string{}

	for _, w := range survivors {
		queued := append(append([]*task.Task(nil), w.Active()...), w.Pending()...)
		for _, t := range queued {
			if _, ok := report.Stopped[t.ClientID]; !ok || t.Cancel() {
				continue
			}
			report.Stopped[t.ClientID]++
			if t.State == task.StateScheduled {
				w.Withdraw(t)
				continue
			}
			w.Requeue(t, task.StateCancelling)
		}
	}

	var errs []error
	for _, clientID := range report.Cancelled {
		if err := s.jobs.Cancel(ctx, clientID); err != nil && !errdefs.IsNotFound(err) {
			errs = append(errs, fmt.Errorf("client %q: failed to cancel job: %w", clientID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) notify(report *Report, cores int) {
	logger := s.logger.WithFields(logrus.Fields{"worker": report.WorkerID, "cause": report.Cause})
	s.metrics.WorkerDeregistered(report.WorkerID, cores, report.Cause)
	s.metrics.Recovered(len(report.Migrated), len(report.Cancelled))
	event.Publish(s.events, &event.Context{EventType: event.WorkerDeregistered, WorkerID: report.WorkerID, Service: "recovery"},
		event.Deregistered{Cause: report.Cause})

	if len(report.Migrated) > 0 {
		event.Publish(s.events, &event.Context{EventType: event.TasksMigrated, WorkerID: report.WorkerID, Service: "recovery"},
			event.Migrated{Moves: maps.Clone(report.Migrated)})
		logger.WithFields(logrus.Fields{"migrated": len(report.Migrated), "resent": len(report.Resent)}).Info("tasks migrated")
	}
	for _, clientID := range report.Cancelled {
		event.Publish(s.events, &event.Context{EventType: event.JobCancelled, WorkerID: report.WorkerID, ClientID: clientID, Service: "recovery"},
			event.Cancelled{Tasks: report.Stopped[clientID]})
		logger.WithFields(logrus.Fields{"client": clientID, "tasks": report.Stopped[clientID]}).Warn("job cancelled, no capacity left for its tasks")
	}
	logger.Info("worker deregistered")
}

func held(workers []*worker.Worker, w *worker.Worker) bool {
	for _, candidate := range workers {
		if candidate == w {
			return true
		}
	}
	return false
}
