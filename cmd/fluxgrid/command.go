package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/viant/fluxgrid"
	"github.com/viant/fluxgrid/service/endpoint"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	configURL   string
	addr        string
	timeout     time.Duration
	immortalTag string
	workers     int
	logLevel    string
	logFormat   string
	tracing     bool
	traceFile   string
	mirrorURL   string
	version     bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "fluxgrid [OPTIONS]",
		Short:         "Schedule task graphs onto volunteer workers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.version {
				fmt.Fprintf(cmd.OutOrStdout(), "fluxgrid version %s\n", fluxgrid.Version)
				return nil
			}
			cfg, err := opts.config(cmd.Context(), cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	opts.install(cmd.Flags())
	return cmd
}

func (o *options) install(flags *pflag.FlagSet) {
	defaults := fluxgrid.DefaultConfig()
	flags.BoolVarP(&o.version, "version", "v", false, "Print version information and quit")
	flags.StringVarP(&o.configURL, "config", "c", "", "Configuration document URL (file path, file://, s3://, gs://)")
	flags.StringVar(&o.addr, "addr", defaults.Server.Addr, "HTTP listen address")
	flags.DurationVar(&o.timeout, "liveness-timeout", defaults.Liveness.Timeout, "Heartbeat deadline, 0 disables liveness timers")
	flags.StringVar(&o.immortalTag, "immortal-tag", defaults.Liveness.ImmortalTag, "Worker id substring exempt from liveness timers")
	flags.IntVar(&o.workers, "recovery-workers", defaults.Processor.WorkerCount, "Number of expiry consumers")
	flags.StringVar(&o.logLevel, "log-level", defaults.Log.Level, "Logging level (debug, info, warn, error)")
	flags.StringVar(&o.logFormat, "log-format", defaults.Log.Format, "Logging format (text, json)")
	flags.BoolVar(&o.tracing, "tracing", false, "Export spans to a file")
	flags.StringVar(&o.traceFile, "trace-file", "", "Span output file, stdout when empty")
	flags.StringVar(&o.mirrorURL, "registry-mirror", "", "URL receiving a JSON copy of every client entry")
}

// config loads the document, if any, and applies the flags the user set.
func (o *options) config(ctx context.Context, flags *pflag.FlagSet) (*fluxgrid.Config, error) {
	cfg := fluxgrid.DefaultConfig()
	if o.configURL != "" {
		var err error
		if cfg, err = fluxgrid.LoadConfig(ctx, o.configURL); err != nil {
			return nil, err
		}
	}
	if flags.Changed("addr") {
		cfg.Server.Addr = o.addr
	}
	if flags.Changed("liveness-timeout") {
		cfg.Liveness.Timeout = o.timeout
	}
	if flags.Changed("immortal-tag") {
		cfg.Liveness.ImmortalTag = o.immortalTag
	}
	if flags.Changed("recovery-workers") {
		cfg.Processor.WorkerCount = o.workers
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if flags.Changed("tracing") {
		cfg.Tracing.Enabled = o.tracing
	}
	if flags.Changed("trace-file") {
		cfg.Tracing.OutputFile = o.traceFile
	}
	if flags.Changed("registry-mirror") {
		cfg.Registry.MirrorURL = o.mirrorURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *fluxgrid.Config) error {
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	srv, err := fluxgrid.New(fluxgrid.WithConfig(cfg), fluxgrid.WithLogger(logger))
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Start(ctx); err != nil {
		return err
	}

	httpServer := endpoint.New(srv,
		endpoint.WithLogger(logger),
		endpoint.WithMetricsHandler(srv.Metrics().Handler()),
	).HTTPServer(cfg.Server.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{"addr": cfg.Server.Addr, "version": fluxgrid.Version}).Info("scheduler listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(httpServer.Shutdown(shutdownCtx), srv.Shutdown(shutdownCtx))
	})
	return g.Wait()
}
