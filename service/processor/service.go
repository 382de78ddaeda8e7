package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/containerd/errdefs"
	"github.com/sirupsen/logrus"
	"github.com/viant/fluxgrid/service/messaging"
	"github.com/viant/fluxgrid/service/metrics"
	"github.com/viant/fluxgrid/service/recovery"
	"github.com/viant/fluxgrid/service/worker"
	"github.com/viant/fluxgrid/tracing"
)

// Config represents processor configuration
type Config struct {
	// WorkerCount is the number of goroutines consuming expiries
	WorkerCount int `json:"workers" yaml:"workers"`

	// Backoff is the pause after a failed consume
	Backoff time.Duration `json:"backoff" yaml:"backoff"`
}

// DefaultConfig returns the default processor configuration
func DefaultConfig() Config {
	return Config{
		WorkerCount: 1,
		Backoff:     100 * time.Millisecond,
	}
}

// Recovery runs a deregistration pass.
type Recovery interface {
	Deregister(ctx context.Context, workerID, cause string) (*recovery.Report, error)
}

// Service consumes liveness expiries.
type Service struct {
	config   Config
	queue    messaging.Queue[worker.Expiry]
	recovery Recovery
	logger   logrus.FieldLogger

	consumers []*consumer
	wg        sync.WaitGroup
	mux       sync.Mutex
}

type consumer struct {
	id       int
	service  *Service
	ctx      context.Context
	cancelFn context.CancelFunc
}

// New creates a processor
func New(options ...Option) (*Service, error) {
	s := &Service{
		config: DefaultConfig(),
		logger: logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.queue == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	if s.recovery == nil {
		return nil, fmt.Errorf("recovery service is required")
	}
	if s.config.WorkerCount <= 0 {
		return nil, fmt.Errorf("worker count must be positive: %d", s.config.WorkerCount)
	}
	return s, nil
}

// Start launches the consumers; they stop when ctx is done or on Shutdown.
func (s *Service) Start(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if len(s.consumers) > 0 {
		return fmt.Errorf("processor already started")
	}
	for i := 0; i < s.config.WorkerCount; i++ {
		consumerCtx, cancel := context.WithCancel(ctx)
		c := &consumer{
			id:       i,
			service:  s,
			ctx:      consumerCtx,
			cancelFn: cancel,
		}
		s.consumers = append(s.consumers, c)
		s.wg.Add(1)
		go c.run()
	}
	return nil
}

// Shutdown stops the consumers and waits for in-flight passes.
func (s *Service) Shutdown() {
	s.mux.Lock()
	consumers := s.consumers
	s.consumers = nil
	s.mux.Unlock()
	for _, c := range consumers {
		c.cancelFn()
	}
	s.wg.Wait()
}

func (c *consumer) run() {
	defer c.service.wg.Done()
	logger := c.service.logger.WithField("consumer", c.id)
	for {
		msg, err := c.service.queue.Consume(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			logger.WithError(err).Warn("failed to consume expiry")
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(c.service.config.Backoff):
			}
			continue
		}
		if msg == nil {
			continue
		}
		if pErr := c.service.processMessage(c.ctx, msg); pErr != nil {
			logger.WithError(pErr).Error("failed to process expiry")
		}
	}
}

// processMessage runs recovery for one expiry. A worker that is already
// gone, or a pass that completed with a registry error, is acknowledged;
// other failures go back to the queue.
func (s *Service) processMessage(ctx context.Context, message messaging.Message[worker.Expiry]) (err error) {
	expiry := message.T()
	ctx, span := tracing.StartSpan(ctx, "processor.expiry", tracing.KindConsumer)
	span.WithAttributes(map[string]string{"worker": expiry.WorkerID})
	defer func() { tracing.EndSpan(span, err) }()

	report, err := s.recovery.Deregister(ctx, expiry.WorkerID, metrics.CauseExpired)
	switch {
	case err == nil:
		return message.Ack()
	case report != nil:
		s.logger.WithField("worker", expiry.WorkerID).WithError(err).Warn("recovery completed with registry error")
		err = nil
		return message.Ack()
	case errdefs.IsNotFound(err):
		s.logger.WithField("worker", expiry.WorkerID).Debug("expired worker already deregistered")
		err = nil
		return message.Ack()
	case errors.Is(err, context.Canceled):
		return message.Nack(err)
	default:
		if nErr := message.Nack(err); nErr != nil {
			return errors.Join(err, nErr)
		}
		return err
	}
}
