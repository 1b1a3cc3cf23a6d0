package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/ebridge/internal/adapters/processor"
	"github.com/bft-labs/ebridge/internal/cliconfig"
	"github.com/bft-labs/ebridge/pkg/ebridge"
	"github.com/bft-labs/ebridge/pkg/log"
	"github.com/bft-labs/ebridge/plugins/certwatcher"
	"github.com/bft-labs/ebridge/plugins/statsreporter"
)

func newServeCommand(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept connections and process their blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, cfg, *cfgPath); err != nil {
				return err
			}
			if err := cfg.ValidateServer(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.CertFile, "cert", cfg.CertFile, "TLS certificate file (PEM)")
	fs.StringVar(&cfg.KeyFile, "key", cfg.KeyFile, "TLS private key file (PEM)")
	fs.BoolVar(&cfg.WatchTLS, "watch-tls", cfg.WatchTLS, "reload the certificate when its files change")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "largest batch handed to the processor")
	fs.IntVar(&cfg.QueueDepth, "queue-depth", cfg.QueueDepth, "batches buffered between the network and processing goroutines")
	fs.StringVar(&cfg.Processor, "processor", cfg.Processor, fmt.Sprintf("built-in processor %v", processor.Names()))
	fs.DurationVar(&cfg.StatsInterval, "stats-interval", cfg.StatsInterval, "how often to log connection bandwidth")
	return cmd
}

func runServe(parent context.Context, cfg *cliconfig.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	proc, err := processor.Lookup(cfg.Processor)
	if err != nil {
		return err
	}
	stack, stopStack, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer stopStack()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []ebridge.Option{
		ebridge.WithLogger(logger),
		ebridge.WithEventHandler(&connLogger{logger: logger}),
		statsreporter.WithStatsReporter(statsreporter.Config{Interval: cfg.StatsInterval}),
	}
	if cfg.WatchTLS {
		opts = append(opts, certwatcher.WithDefaultCertWatcher())
	}
	if reg := newMetrics(cfg); reg != nil {
		opts = append(opts, ebridge.WithMetrics(reg))
		serveMetrics(ctx, cfg.MetricsAddr, reg, logger)
	}

	srv, err := ebridge.NewServer(ebridge.ServerConfig{
		Host:       cfg.Host,
		Port:       cfg.Port,
		CertFile:   cfg.CertFile,
		KeyFile:    cfg.KeyFile,
		Stack:      stack,
		Processor:  proc,
		BatchSize:  cfg.BatchSize,
		QueueDepth: cfg.QueueDepth,
		BusyDelay:  cfg.BusyDelay,
		IdleDelay:  cfg.IdleDelay,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	logger.Info("starting server",
		log.String("stack", cfg.Stack),
		log.String("processor", cfg.Processor),
	)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("run server: %w", err)
	}
	return nil
}

// connLogger logs connection events at info level.
type connLogger struct {
	ebridge.BaseEventHandler
	logger log.Logger
}

func (h *connLogger) OnConnectionClosed(e ebridge.ConnectionEvent) {
	fields := []log.Field{
		log.String("conn_id", string(e.ID)),
		log.String("remote", e.Remote),
		log.String("state", e.State),
	}
	if e.Err != nil {
		fields = append(fields, log.Err(e.Err))
	}
	h.logger.Info("connection ended", fields...)
}

func (h *connLogger) OnConnected(e ebridge.ConnectedEvent) {
	h.logger.Info("connected", log.String("remote", e.Remote))
}

func (h *connLogger) OnDisconnected(e ebridge.DisconnectedEvent) {
	h.logger.Info("will reconnect",
		log.Int("retry", e.Retry),
		log.Duration("in", e.RetryIn),
	)
}
