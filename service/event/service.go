package event

import (
	"time"

	"github.com/moby/pubsub"
)

// Service broadcasts lifecycle events to subscribers. A nil *Service
// discards everything.
type Service struct {
	publisher *pubsub.Publisher
	timeout   time.Duration
	buffer    int
}

func New(opts ...Option) *Service {
	ret := &Service{timeout: 100 * time.Millisecond, buffer: 64}
	for _, opt := range opts {
		opt(ret)
	}
	ret.publisher = pubsub.NewPublisher(ret.timeout, ret.buffer)
	return ret
}

// Publish broadcasts an event carrying data to every matching subscriber.
func Publish[T any](s *Service, context *Context, data T) {
	if s == nil {
		return
	}
	s.publisher.Publish(NewEvent[T](context, data))
}

// Subscribe returns a channel receiving every event.
func (s *Service) Subscribe() chan interface{} {
	return s.publisher.Subscribe()
}

// SubscribeOf returns a channel receiving events with payload T.
func SubscribeOf[T any](s *Service) chan interface{} {
	return s.publisher.SubscribeTopic(func(v interface{}) bool {
		_, ok := v.(*Event[T])
		return ok
	})
}

// Evict closes and removes a subscription.
func (s *Service) Evict(sub chan interface{}) {
	s.publisher.Evict(sub)
}

// Subscribers returns the number of subscriptions.
func (s *Service) Subscribers() int {
	if s == nil {
		return 0
	}
	return s.publisher.Len()
}

// Close closes every subscription.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.publisher.Close()
}
