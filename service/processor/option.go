package processor

import (
	"github.com/sirupsen/logrus"
	"github.com/viant/fluxgrid/service/messaging"
	"github.com/viant/fluxgrid/service/worker"
)

type Option func(*Service)

// WithMessageQueue sets the expiry queue
func WithMessageQueue(queue messaging.Queue[worker.Expiry]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithRecovery sets the recovery service run for each expiry
func WithRecovery(recovery Recovery) Option {
	return func(s *Service) {
		s.recovery = recovery
	}
}

// WithWorkers sets the number of consumer goroutines
func WithWorkers(count int) Option {
	return func(s *Service) {
		s.config.WorkerCount = count
	}
}

// WithConfig sets the configuration for the service
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
