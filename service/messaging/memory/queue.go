package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/fluxgrid/internal/idgen"
	"github.com/viant/fluxgrid/service/messaging"
)

// ErrAlreadyProcessed is returned on a second Ack/Nack of one message.
var ErrAlreadyProcessed = errors.New("message already processed")

// Config for the memory queue
type Config struct {
	Buffer     int           `json:"buffer" yaml:"buffer"`
	MaxRetries int           `json:"maxRetries" yaml:"maxRetries"`
	RetryDelay time.Duration `json:"retryDelay" yaml:"retryDelay"`
}

// DefaultConfig returns the standard configuration
func DefaultConfig() Config {
	return Config{
		Buffer:     256,
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Message is a delivery of a payload
type Message[T any] struct {
	id       string
	payload  T
	attempts int
	queue    *Queue[T]
	mu       sync.Mutex
	done     bool
}

// ID returns the message id, stable across redeliveries.
func (m *Message[T]) ID() string { return m.id }

// Attempts returns how many times the payload was delivered before.
func (m *Message[T]) Attempts() int { return m.attempts }

// T returns the payload
func (m *Message[T]) T() *T {
	return &m.payload
}

// Ack acknowledges the message
func (m *Message[T]) Ack() error {
	return m.finish()
}

// Nack redelivers the payload after RetryDelay unless retries are exhausted.
func (m *Message[T]) Nack(err error) error {
	if fErr := m.finish(); fErr != nil {
		return fErr
	}
	if m.attempts >= m.queue.config.MaxRetries {
		m.queue.drop(m, err)
		return nil
	}
	next := &Message[T]{id: m.id, payload: m.payload, attempts: m.attempts + 1, queue: m.queue}
	time.AfterFunc(m.queue.config.RetryDelay, func() {
		m.queue.enqueue(next)
	})
	return nil
}

func (m *Message[T]) finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return fmt.Errorf("message %s: %w", m.id, ErrAlreadyProcessed)
	}
	m.done = true
	return nil
}

// Queue is an in-memory messaging.Queue backed by a buffered channel.
type Queue[T any] struct {
	config   Config
	messages chan *Message[T]
	closed   chan struct{}
	mu       sync.Mutex
	dropped  []error
}

// NewQueue creates a queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig().Buffer
	}
	return &Queue[T]{
		config:   config,
		messages: make(chan *Message[T], config.Buffer),
		closed:   make(chan struct{}),
	}
}

// Publish enqueues a copy of t
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if t == nil {
		return fmt.Errorf("memory queue: nil payload")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-q.closed:
		return fmt.Errorf("memory queue: closed")
	default:
	}
	msg := &Message[T]{id: idgen.New(), payload: *t, queue: q}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return fmt.Errorf("memory queue: closed")
	case q.messages <- msg:
		return nil
	}
}

// Consume waits for the next message
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-q.closed:
		return nil, fmt.Errorf("memory queue: closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting and delivering messages.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}

// Size returns the number of queued messages
func (q *Queue[T]) Size() int {
	return len(q.messages)
}

// Dropped returns the errors of messages whose retries were exhausted.
func (q *Queue[T]) Dropped() []error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]error(nil), q.dropped...)
}

func (q *Queue[T]) enqueue(msg *Message[T]) {
	select {
	case <-q.closed:
	case q.messages <- msg:
	}
}

func (q *Queue[T]) drop(msg *Message[T], err error) {
	if err == nil {
		err = fmt.Errorf("message %s: retries exhausted", msg.id)
	}
	q.mu.Lock()
	q.dropped = append(q.dropped, err)
	q.mu.Unlock()
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
