package fluxgrid

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/viant/fluxgrid/internal/clock"
	"github.com/viant/fluxgrid/model/task"
	"github.com/viant/fluxgrid/service/allocator"
	jobdao "github.com/viant/fluxgrid/service/dao/job"
	jfs "github.com/viant/fluxgrid/service/dao/job/fs"
	jmemory "github.com/viant/fluxgrid/service/dao/job/memory"
	"github.com/viant/fluxgrid/service/event"
	mmemory "github.com/viant/fluxgrid/service/messaging/memory"
	"github.com/viant/fluxgrid/service/metrics"
	"github.com/viant/fluxgrid/service/processor"
	"github.com/viant/fluxgrid/service/recovery"
	"github.com/viant/fluxgrid/service/worker"
	"github.com/viant/fluxgrid/tracing"
)

// Service is the scheduler: it owns the worker pool, the client/job registry
// and the recovery processor fed by liveness expiries.
type Service struct {
	config  *Config
	clock   clock.Clock
	logger  logrus.FieldLogger
	events  *event.Service
	metrics *metrics.Metrics

	pool      *worker.Pool
	jobs      jobdao.Service
	queue     *mmemory.Queue[worker.Expiry]
	allocator *allocator.Service
	recovery  *recovery.Service
	processor *processor.Service

	initTracing     func() (tracing.Shutdown, error)
	shutdownTracing tracing.Shutdown
	mux             sync.Mutex
	started         bool
}

// State is a point-in-time dump of the scheduler.
type State struct {
	Workers []*worker.Snapshot  `json:"workers"`
	Clients map[string][]string `json:"clients"`
}

// New creates a scheduler. Call Start to begin processing liveness expiries.
func New(options ...Option) (*Service, error) {
	s := &Service{config: DefaultConfig()}
	for _, option := range options {
		option(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	s.ensureBaseSetup()
	if s.jobs == nil {
		mirror, err := jfs.New(context.Background(), s.config.Registry.MirrorURL, jfs.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		s.jobs = mirror
	}

	s.queue = mmemory.NewQueue[worker.Expiry](s.config.queue())
	s.pool = worker.NewPool(
		worker.WithClock(s.clock),
		worker.WithLiveness(s.config.liveness()),
		worker.WithExpiryQueue(s.queue),
		worker.WithLogger(s.logger),
	)
	s.allocator = allocator.New(s.pool, s.jobs,
		allocator.WithEvents(s.events),
		allocator.WithMetrics(s.metrics),
		allocator.WithLogger(s.logger))
	s.recovery = recovery.New(s.pool, s.jobs,
		recovery.WithEvents(s.events),
		recovery.WithMetrics(s.metrics),
		recovery.WithLogger(s.logger))

	var err error
	s.processor, err = processor.New(
		processor.WithMessageQueue(s.queue),
		processor.WithRecovery(s.recovery),
		processor.WithWorkers(s.config.Processor.WorkerCount),
		processor.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ensureBaseSetup() {
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.events == nil {
		s.events = event.New()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.jobs == nil && s.config.Registry.MirrorURL == "" {
		s.jobs = jmemory.New()
	}
	if s.initTracing == nil && s.config.Tracing.Enabled {
		tc := s.config.Tracing
		s.initTracing = func() (tracing.Shutdown, error) {
			return tracing.Init(tc.ServiceName, Version, tc.OutputFile)
		}
	}
}

// Start installs tracing and launches the recovery processor.
func (s *Service) Start(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	if s.initTracing != nil {
		shutdown, err := s.initTracing()
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		s.shutdownTracing = shutdown
	}
	if err := s.processor.Start(ctx); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Shutdown stops the liveness timers and the processor, then releases the
// queue, the subscribers and the tracer.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.pool.Close()
	s.processor.Shutdown()
	s.queue.Close()
	s.events.Close()
	s.started = false
	var err error
	if s.shutdownTracing != nil {
		err = s.shutdownTracing(ctx)
		s.shutdownTracing = nil
	}
	return err
}

// Register adds a worker and returns its id, generated when workerID is empty.
func (s *Service) Register(ctx context.Context, workerID string, cores int) (string, error) {
	w, err := s.pool.Register(workerID, cores)
	if err != nil {
		return "", err
	}
	s.metrics.WorkerRegistered(cores)
	event.Publish(s.events, &event.Context{EventType: event.WorkerRegistered, WorkerID: w.ID, Service: "scheduler"},
		event.Registered{Cores: cores})
	return w.ID, nil
}

// Heartbeat reconciles the worker's running tasks and returns new work.
func (s *Service) Heartbeat(ctx context.Context, workerID string, activeIDs []string) (sent []*task.Task, err error) {
	_, span := tracing.StartSpan(ctx, "scheduler.Heartbeat", tracing.KindInternal)
	span.WithAttributes(map[string]string{"worker": workerID}).WithInt("active", len(activeIDs))
	defer func() { tracing.EndSpan(span, err) }()

	if sent, err = s.pool.Heartbeat(workerID, activeIDs); err != nil {
		return nil, err
	}
	// a concurrent deregistration may have removed the worker since
	if w, lookupErr := s.pool.Lookup(workerID); lookupErr == nil {
		snapshot := w.Snapshot()
		s.metrics.Heartbeat(workerID, len(snapshot.Active), len(snapshot.Pending))
	}
	return sent, nil
}

// Allocate places the vertices of a client's graph and returns the task ids
// in vertex order.
func (s *Service) Allocate(ctx context.Context, clientID string, vertices []task.Vertex) ([]string, error) {
	return s.allocator.Allocate(ctx, clientID, vertices)
}

// Allocation returns the client's current task ids; a cancelled job yields
// an empty list.
func (s *Service) Allocation(ctx context.Context, clientID string) ([]string, error) {
	return s.jobs.TaskIDs(ctx, clientID)
}

// Pointers returns the client's current task locators.
func (s *Service) Pointers(ctx context.Context, clientID string) ([]task.Pointer, error) {
	return s.jobs.Pointers(ctx, clientID)
}

// Program returns the payload of a task.
func (s *Service) Program(ctx context.Context, taskID string) (string, error) {
	return s.jobs.Program(ctx, taskID)
}

// Deregister removes a worker explicitly and repairs its jobs.
func (s *Service) Deregister(ctx context.Context, workerID string) (*recovery.Report, error) {
	return s.recovery.Deregister(ctx, workerID, metrics.CauseExplicit)
}

// State dumps the workers and client entries.
func (s *Service) State(ctx context.Context) *State {
	ret := &State{Workers: s.pool.Snapshot(), Clients: map[string][]string{}}
	jobs, err := s.jobs.List(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("failed to list jobs")
		return ret
	}
	for _, j := range jobs {
		ret.Clients[j.ClientID] = j.IDs()
	}
	return ret
}

// Events returns the lifecycle event broadcaster.
func (s *Service) Events() *event.Service {
	return s.events
}

// Metrics returns the Prometheus collectors.
func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}
