package event

import (
	"context"
	"sync"
)

// Listener runs handler for every event with payload T until stopped.
type Listener[T any] struct {
	service *Service
	handler func(*Event[T])
	sub     chan interface{}
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func NewListener[T any](service *Service, handler func(*Event[T])) *Listener[T] {
	return &Listener[T]{
		service: service,
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start subscribes and begins dispatching in a goroutine.
func (l *Listener[T]) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.sub = SubscribeOf[T](l.service)
	go func() {
		defer close(l.done)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-l.sub:
				if !ok {
					return
				}
				l.handler(v.(*Event[T]))
			}
		}
	}()
}

// Stop evicts the subscription and waits for the dispatch loop to exit.
func (l *Listener[T]) Stop() {
	l.once.Do(func() {
		if l.cancel == nil {
			return
		}
		l.cancel()
		<-l.done
		l.service.Evict(l.sub)
	})
}
