package messaging

import (
	"context"
)

// Queue carries payloads of type T between a producer and its consumers.
type Queue[T any] interface {
	// Publish enqueues a payload.
	Publish(ctx context.Context, t *T) error

	// Consume blocks until a message is available or ctx is done.
	Consume(ctx context.Context) (Message[T], error)
}

// Message wraps a consumed payload.
type Message[T any] interface {
	// T returns the payload.
	T() *T

	// Ack confirms the payload was handled.
	Ack() error

	// Nack reports a failure; the queue may redeliver the payload.
	Nack(err error) error
}
