package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/ebridge/internal/cliconfig"
	"github.com/bft-labs/ebridge/pkg/ebridge"
	"github.com/bft-labs/ebridge/pkg/log"
)

func newConnectCommand(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Send stdin lines as blocks and print the replies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, cfg, *cfgPath); err != nil {
				return err
			}
			if err := cfg.ValidateClient(); err != nil {
				return err
			}
			return runConnect(cmd.Context(), cfg, os.Stdin, os.Stdout)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.CAFile, "ca", cfg.CAFile, "CA certificate to trust (enables TLS)")
	fs.BoolVar(&cfg.Insecure, "insecure", cfg.Insecure, "use TLS without verifying the server certificate")
	fs.DurationVar(&cfg.RetryCap, "retry-cap", cfg.RetryCap, "longest wait between reconnect attempts")
	return cmd
}

func runConnect(parent context.Context, cfg *cliconfig.Config, in io.Reader, out io.Writer) error {
	logger, err := newLogger(cfg)
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
	}
	if reg := newMetrics(cfg); reg != nil {
		opts = append(opts, ebridge.WithMetrics(reg))
		serveMetrics(ctx, cfg.MetricsAddr, reg, logger)
	}

	cli, err := ebridge.NewClient(ebridge.ClientConfig{
		Host:      cfg.Host,
		Port:      cfg.Port,
		CAFile:    cfg.CAFile,
		Insecure:  cfg.Insecure,
		Stack:     stack,
		RetryCap:  cfg.RetryCap,
		BusyDelay: cfg.BusyDelay,
		IdleDelay: cfg.IdleDelay,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	if err := cli.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}
	defer cli.Destroy()

	lines := make(chan []byte)
	go func(ch chan<- []byte) {
		defer close(ch)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case ch <- line:
			case <-ctx.Done():
				return
			}
		}
	}(lines)

	var pending [][]byte
	ticker := time.NewTicker(cfg.IdleDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// replies keep printing until interrupted
				logger.Debug("input finished", log.Bool("connected", cli.Connected()))
				lines = nil
				continue
			}
			pending = append(pending, line)
		case <-ticker.C:
		}

		if len(pending) > 0 && cli.Write(pending) {
			pending = nil
		}
		for {
			payloads, ok := cli.Read()
			if !ok {
				break
			}
			for _, p := range payloads {
				fmt.Fprintf(out, "%s\n", p)
			}
		}
	}
}
