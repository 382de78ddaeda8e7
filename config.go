package fluxgrid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"github.com/viant/fluxgrid/internal/expand"
	"github.com/viant/fluxgrid/service/messaging/memory"
	"github.com/viant/fluxgrid/service/worker"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the scheduler configuration.
// It can be populated from YAML or JSON; DefaultConfig supplies every value
// the document leaves out.
type Config struct {
	Liveness  LivenessConfig  `json:"liveness" yaml:"liveness"`
	Processor ProcessorConfig `json:"processor" yaml:"processor"`
	Queue     QueueConfig     `json:"queue" yaml:"queue"`
	Registry  RegistryConfig  `json:"registry" yaml:"registry"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing"`
}

type LivenessConfig struct {
	// Timeout is how long a worker may skip heartbeats; 0 disables timers.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// ImmortalTag exempts worker ids containing it from the timeout.
	ImmortalTag string `json:"immortalTag" yaml:"immortalTag"`
}

type ProcessorConfig struct {
	WorkerCount int `json:"workers" yaml:"workers"`
}

type QueueConfig struct {
	Buffer     int           `json:"buffer" yaml:"buffer"`
	MaxRetries int           `json:"maxRetries" yaml:"maxRetries"`
	RetryDelay time.Duration `json:"retryDelay" yaml:"retryDelay"`
}

type RegistryConfig struct {
	// MirrorURL, when set, receives a JSON copy of every client entry.
	MirrorURL string `json:"mirrorURL" yaml:"mirrorURL"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	OutputFile  string `json:"outputFile" yaml:"outputFile"`
}

// DefaultConfig returns a Config populated with the built-in defaults.
// Callers may modify the returned struct before passing it to WithConfig.
func DefaultConfig() *Config {
	liveness := worker.DefaultLiveness()
	queue := memory.DefaultConfig()
	return &Config{
		Liveness: LivenessConfig{
			Timeout:     liveness.Timeout,
			ImmortalTag: liveness.ImmortalTag,
		},
		Processor: ProcessorConfig{WorkerCount: 1},
		Queue: QueueConfig{
			Buffer:     queue.Buffer,
			MaxRetries: queue.MaxRetries,
			RetryDelay: queue.RetryDelay,
		},
		Server:  ServerConfig{Addr: ":5000"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{ServiceName: "fluxgrid"},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Liveness.Timeout < 0 {
		errs = append(errs, fmt.Errorf("liveness.timeout must be >= 0"))
	}
	if c.Processor.WorkerCount <= 0 {
		errs = append(errs, fmt.Errorf("processor.workers must be > 0"))
	}
	if c.Queue.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("queue.buffer must be > 0"))
	}
	if c.Queue.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("queue.maxRetries must be >= 0"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr is required"))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML (or JSON) document from any afs supported URL
// over the defaults and validates the result. ${env.KEY} expressions are
// replaced with environment values before decoding.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	cfg := DefaultConfig()
	if err = yaml.Unmarshal([]byte(expand.Env(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return cfg, nil
}

// NewLogger creates a logger with the configured level and format.
func (c *LogConfig) NewLogger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stderr
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

func (c *Config) liveness() worker.Liveness {
	return worker.Liveness{Timeout: c.Liveness.Timeout, ImmortalTag: c.Liveness.ImmortalTag}
}

func (c *Config) queue() memory.Config {
	return memory.Config{Buffer: c.Queue.Buffer, MaxRetries: c.Queue.MaxRetries, RetryDelay: c.Queue.RetryDelay}
}
