package event

import "time"

type Option func(s *Service)

// WithTimeout sets how long Publish waits for a slow subscriber.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.timeout = timeout
	}
}

// WithBuffer sets the channel buffer of every subscription.
func WithBuffer(buffer int) Option {
	return func(s *Service) {
		s.buffer = buffer
	}
}
