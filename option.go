package fluxgrid

import (
	"github.com/sirupsen/logrus"
	"github.com/viant/fluxgrid/internal/clock"
	jobdao "github.com/viant/fluxgrid/service/dao/job"
	"github.com/viant/fluxgrid/service/event"
	"github.com/viant/fluxgrid/service/metrics"
	"github.com/viant/fluxgrid/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures the Service.
type Option func(s *Service)

// WithConfig sets the configuration; nil keeps the defaults.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithClock sets the clock driving the liveness timers.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithEventService sets the lifecycle event broadcaster.
func WithEventService(service *event.Service) Option {
	return func(s *Service) { s.events = service }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithJobDAO sets the client/job registry.
func WithJobDAO(jobs jobdao.Service) Option {
	return func(s *Service) { s.jobs = jobs }
}

// WithTracingExporter configures OpenTelemetry with a custom SpanExporter,
// for example OTLP or an in-memory exporter in tests. It overrides the
// tracing section of the configuration.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		s.initTracing = func() (tracing.Shutdown, error) {
			return tracing.InitWithExporter(serviceName, serviceVersion, exporter)
		}
	}
}
