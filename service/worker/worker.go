package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viant/fluxgrid/internal/clock"
	"github.com/viant/fluxgrid/model/task"
	"github.com/viant/fluxgrid/service/messaging"
)

// Expiry is published once when a worker misses its liveness deadline.
type Expiry struct {
	WorkerID string    `json:"workerID"`
	Deadline time.Time `json:"deadline"`
}

// Worker tracks the task slots of one registered worker.
//
// Heartbeat locks the worker itself. Every method documented as "locked"
// expects the caller to hold the worker through Lock; multi-worker
// operations acquire workers in registration order (see Seq).
type Worker struct {
	ID    string
	Cores int
	seq   uint64

	mu      sync.Mutex
	active  []*task.Task
	pending []*task.Task

	clock    clock.Clock
	timeout  time.Duration
	timer    clock.Timer
	deadline time.Time
	lastSeen time.Time
	stop     chan struct{}
	expiries messaging.Queue[Expiry]
	logger   logrus.FieldLogger

	expired bool
	retired bool
}

// Seq returns the registration sequence number.
func (w *Worker) Seq() uint64 { return w.seq }

// Lock acquires the worker.
func (w *Worker) Lock() { w.mu.Lock() }

// Unlock releases the worker.
func (w *Worker) Unlock() { w.mu.Unlock() }

// Heartbeat reconciles the reported running tasks and hands out pending
// tasks up to the free core count, earliest enqueued first. It re-arms the
// liveness timer and returns copies of the dispatched tasks.
func (w *Worker) Heartbeat(activeIDs []string) ([]*task.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.retired || w.expired {
		return nil, ErrUnknownWorker
	}

	running := make(map[string]bool, len(activeIDs))
	for _, id := range activeIDs {
		running[id] = true
	}
	kept := w.active[:0]
	for _, t := range w.active {
		if running[t.ID] {
			kept = append(kept, t)
		}
	}
	clear(w.active[len(kept):])
	w.active = kept

	n := w.Cores - len(w.active)
	if n < 0 {
		n = 0
	}
	if n > len(w.pending) {
		n = len(w.pending)
	}
	sent := make([]*task.Task, n)
	for i, t := range w.pending[:n] {
		sent[i] = t.Clone()
		t.State = t.State.Dispatched()
	}
	w.active = append(w.active, w.pending[:n]...)
	w.pending = append([]*task.Task(nil), w.pending[n:]...)

	w.lastSeen = w.clock.Now()
	w.rearm()
	return sent, nil
}

// Availability returns the free slots; a retired or expired worker has
// none. Locked.
func (w *Worker) Availability() int {
	if w.retired || w.expired {
		return 0
	}
	return w.Cores - len(w.active) - len(w.pending)
}

// Retired reports whether the worker left the pool. Locked.
func (w *Worker) Retired() bool {
	return w.retired
}

// Enqueue appends a task to the pending queue. Locked.
func (w *Worker) Enqueue(t *task.Task) {
	w.pending = append(w.pending, t)
}

// Withdraw removes the task from whichever queue holds it. Locked.
func (w *Worker) Withdraw(t *task.Task) bool {
	var ok bool
	if w.pending, ok = remove(w.pending, t); ok {
		return true
	}
	w.active, ok = remove(w.active, t)
	return ok
}

// Requeue sets the task state and moves it back to the pending queue when
// it is active, so that the next heartbeat delivers it again. Locked.
func (w *Worker) Requeue(t *task.Task, state task.State) bool {
	t.State = state
	if contains(w.pending, t) {
		return true
	}
	var ok bool
	if w.active, ok = remove(w.active, t); ok {
		w.pending = append(w.pending, t)
	}
	return ok
}

// Retire stops the liveness timer and returns the worker's tasks, active
// ones first. Locked.
func (w *Worker) Retire() []*task.Task {
	if w.retired {
		return nil
	}
	w.retired = true
	w.disarm()
	ret := make([]*task.Task, 0, len(w.active)+len(w.pending))
	ret = append(ret, w.active...)
	ret = append(ret, w.pending...)
	w.active, w.pending = nil, nil
	return ret
}

// Active returns the active tasks. Locked.
func (w *Worker) Active() []*task.Task { return w.active }

// Pending returns the pending tasks. Locked.
func (w *Worker) Pending() []*task.Task { return w.pending }

// Snapshot returns a point-in-time view of the worker.
func (w *Worker) Snapshot() *Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &Snapshot{
		ID:       w.ID,
		Cores:    w.Cores,
		Active:   ids(w.active),
		Pending:  ids(w.pending),
		LastSeen: w.lastSeen,
		Deadline: w.deadline,
	}
}

// arm starts the liveness timer; timeout <= 0 leaves the worker exempt.
func (w *Worker) arm() {
	if w.timeout <= 0 || w.expiries == nil {
		return
	}
	w.deadline = w.clock.Now().Add(w.timeout)
	w.timer = w.clock.NewTimer(w.timeout)
	w.stop = make(chan struct{})
	go w.watch(w.timer, w.stop)
}

func (w *Worker) rearm() {
	if w.timer == nil {
		return
	}
	w.deadline = w.clock.Now().Add(w.timeout)
	w.timer.Stop()
	w.timer.Reset(w.timeout)
}

// disarm stops the liveness timer for good.
func (w *Worker) disarm() {
	if w.timer == nil {
		return
	}
	w.timer.Stop()
	close(w.stop)
	w.timer, w.stop = nil, nil
}

func (w *Worker) watch(timer clock.Timer, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-timer.C():
		}
		w.mu.Lock()
		if w.retired || w.expired {
			w.mu.Unlock()
			return
		}
		if w.clock.Now().Before(w.deadline) {
			// fired before a concurrent heartbeat re-armed it
			w.mu.Unlock()
			continue
		}
		w.expired = true
		expiry := &Expiry{WorkerID: w.ID, Deadline: w.deadline}
		w.mu.Unlock()

		w.logger.WithField("worker", w.ID).Warn("liveness deadline missed")
		if err := w.expiries.Publish(context.Background(), expiry); err != nil {
			w.logger.WithField("worker", w.ID).WithError(err).Error("failed to publish expiry")
		}
		return
	}
}

func remove(tasks []*task.Task, t *task.Task) ([]*task.Task, bool) {
	for i, candidate := range tasks {
		if candidate == t {
			return append(tasks[:i], tasks[i+1:]...), true
		}
	}
	return tasks, false
}

func contains(tasks []*task.Task, t *task.Task) bool {
	for _, candidate := range tasks {
		if candidate == t {
			return true
		}
	}
	return false
}

func ids(tasks []*task.Task) []string {
	ret := make([]string, len(tasks))
	for i, t := range tasks {
		ret[i] = t.ID
	}
	return ret
}
