package worker

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/containerd/errdefs"
	"github.com/sirupsen/logrus"
	"github.com/viant/fluxgrid/internal/clock"
	"github.com/viant/fluxgrid/internal/idgen"
	"github.com/viant/fluxgrid/model/task"
	"github.com/viant/fluxgrid/service/messaging"
	"github.com/viant/fluxgrid/service/messaging/memory"
)

var (
	// ErrAlreadyRegistered is returned when a worker id is in use.
	ErrAlreadyRegistered = fmt.Errorf("worker already registered: %w", errdefs.ErrAlreadyExists)
	// ErrUnknownWorker is returned for ids absent from the pool.
	ErrUnknownWorker = fmt.Errorf("unknown worker: %w", errdefs.ErrNotFound)
	// ErrInvalidCores is returned for a non-positive core count.
	ErrInvalidCores = fmt.Errorf("n_cores must be positive: %w", errdefs.ErrInvalidArgument)
	// ErrInvalidID is returned for a worker id that cannot be embedded in a task id.
	ErrInvalidID = fmt.Errorf("worker id must not contain %q: %w", task.Separator, errdefs.ErrInvalidArgument)
)

// Liveness configures heartbeat timeouts.
type Liveness struct {
	// Timeout is how long a worker may stay silent; 0 disables timers.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// ImmortalTag exempts worker ids containing it; empty disables the convention.
	ImmortalTag string `json:"immortalTag" yaml:"immortalTag"`
}

// DefaultLiveness returns the default liveness settings.
func DefaultLiveness() Liveness {
	return Liveness{Timeout: 60 * time.Second, ImmortalTag: "immortal"}
}

// Exempt reports whether the worker never times out.
func (l Liveness) Exempt(workerID string) bool {
	if l.Timeout <= 0 {
		return true
	}
	return l.ImmortalTag != "" && strings.Contains(workerID, l.ImmortalTag)
}

// Pool is the registration-ordered set of workers.
type Pool struct {
	mu       sync.RWMutex
	workers  map[string]*Worker
	order    []*Worker
	seq      uint64
	clock    clock.Clock
	liveness Liveness
	expiries messaging.Queue[Expiry]
	logger   logrus.FieldLogger
}

// Option configures a Pool.
type Option func(p *Pool)

// WithClock sets the time source for liveness timers.
func WithClock(c clock.Clock) Option {
	return func(p *Pool) { p.clock = c }
}

// WithLiveness sets the liveness settings.
func WithLiveness(l Liveness) Option {
	return func(p *Pool) { p.liveness = l }
}

// WithExpiryQueue sets the queue receiving liveness expiries.
func WithExpiryQueue(q messaging.Queue[Expiry]) Option {
	return func(p *Pool) { p.expiries = q }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates an empty pool.
func NewPool(options ...Option) *Pool {
	p := &Pool{
		workers:  map[string]*Worker{},
		liveness: DefaultLiveness(),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.clock == nil {
		p.clock = clock.New()
	}
	if p.logger == nil {
		p.logger = logrus.StandardLogger()
	}
	if p.expiries == nil {
		p.expiries = memory.NewQueue[Expiry](memory.DefaultConfig())
	}
	return p
}

// Expiries returns the queue receiving liveness expiries.
func (p *Pool) Expiries() messaging.Queue[Expiry] {
	return p.expiries
}

// Register adds a worker and arms its liveness timer. An empty id is
// replaced with a generated one.
func (p *Pool) Register(workerID string, cores int) (*Worker, error) {
	if cores <= 0 {
		return nil, fmt.Errorf("worker %q: %d: %w", workerID, cores, ErrInvalidCores)
	}
	if workerID == "" {
		workerID = idgen.NewWorkerID()
	}
	if strings.Contains(workerID, task.Separator) {
		return nil, fmt.Errorf("worker %q: %w", workerID, ErrInvalidID)
	}

	p.mu.Lock()
	if _, ok := p.workers[workerID]; ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("worker %q: %w", workerID, ErrAlreadyRegistered)
	}
	p.seq++
	w := &Worker{
		ID:       workerID,
		Cores:    cores,
		seq:      p.seq,
		clock:    p.clock,
		logger:   p.logger,
		lastSeen: p.clock.Now(),
	}
	if !p.liveness.Exempt(workerID) {
		w.timeout = p.liveness.Timeout
		w.expiries = p.expiries
	}
	p.workers[workerID] = w
	p.order = append(p.order, w)
	p.mu.Unlock()

	w.Lock()
	if !w.retired {
		w.arm()
	}
	w.Unlock()
	p.logger.WithFields(logrus.Fields{"worker": workerID, "cores": cores}).Info("worker registered")
	return w, nil
}

// Lookup returns a registered worker.
func (p *Pool) Lookup(workerID string) (*Worker, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	w, ok := p.workers[workerID]
	if !ok {
		return nil, fmt.Errorf("worker %q: %w", workerID, ErrUnknownWorker)
	}
	return w, nil
}

// Heartbeat forwards a heartbeat to the worker.
func (p *Pool) Heartbeat(workerID string, activeIDs []string) ([]*task.Task, error) {
	w, err := p.Lookup(workerID)
	if err != nil {
		return nil, err
	}
	sent, err := w.Heartbeat(activeIDs)
	if err != nil {
		return nil, fmt.Errorf("worker %q: %w", workerID, err)
	}
	p.logger.WithFields(logrus.Fields{"worker": workerID, "active": len(activeIDs), "sent": len(sent)}).Debug("heartbeat")
	return sent, nil
}

// Workers returns the workers in registration order.
func (p *Pool) Workers() []*Worker {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Worker(nil), p.order...)
}

// Remove drops the worker from the pool. It does not touch the worker's
// tasks; see Worker.Retire.
func (p *Pool) Remove(workerID string) (*Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[workerID]
	if !ok {
		return nil, false
	}
	delete(p.workers, workerID)
	for i, candidate := range p.order {
		if candidate == w {
			p.order = append(p.order[:i:i], p.order[i+1:]...)
			break
		}
	}
	return w, true
}

// Len returns the number of registered workers.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

// Snapshot returns a view of every worker in registration order.
func (p *Pool) Snapshot() []*Snapshot {
	workers := p.Workers()
	ret := make([]*Snapshot, len(workers))
	for i, w := range workers {
		ret[i] = w.Snapshot()
	}
	return ret
}

// LockAll locks the workers in the supplied order and returns the release
// function, which unlocks them in reverse.
func LockAll(workers []*Worker) func() {
	for _, w := range workers {
		w.Lock()
	}
	return func() {
		for i := len(workers) - 1; i >= 0; i-- {
			workers[i].Unlock()
		}
	}
}

// Close stops every liveness timer. Workers keep their tasks.
func (p *Pool) Close() {
	for _, w := range p.Workers() {
		w.Lock()
		w.disarm()
		w.Unlock()
	}
}
