package allocator

import (
	"github.com/sirupsen/logrus"
	"github.com/viant/fluxgrid/service/event"
	"github.com/viant/fluxgrid/service/metrics"
)

// Option configures the allocator.
type Option func(s *Service)

// WithEvents sets the lifecycle event broadcaster.
func WithEvents(events *event.Service) Option {
	return func(s *Service) { s.events = events }
}

// WithMetrics sets the collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = logger }
}
