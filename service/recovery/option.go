package recovery

import (
	"github.com/sirupsen/logrus"
	"github.com/viant/fluxgrid/service/event"
	"github.com/viant/fluxgrid/service/metrics"
)

type Option func(s *Service)

func WithEvents(events *event.Service) Option {
	return func(s *Service) { s.events = events }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = logger }
}
