package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/ebridge/internal/cliconfig"
	"github.com/bft-labs/ebridge/pkg/ebridge"
	"github.com/bft-labs/ebridge/pkg/log"
	"github.com/bft-labs/ebridge/pkg/pipeline"
)

const helpDescription = `
Move length-prefixed blocks between remote peers and a local processing stage.

  serve    accept connections, batch their blocks through a processor and
           send each result back to the connection it came from
  connect  open a connection, send stdin lines as blocks, print replies

Configure via flags, EBRIDGE_* environment variables or
$HOME/.ebridge/config.toml. Flags win over the environment, which wins over
the file.
`

var exampleUsage = strings.TrimSpace(`
  ebridge serve --host 0.0.0.0 --port 7000 --processor reverse
  ebridge serve --cert server.pem --key server.key --watch-tls --metrics-addr :9100
  ebridge connect --host 10.0.0.5 --port 7000 --ca ca.pem
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "ebridge",
		Short:         "Bidirectional block transport with batched processing",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.ebridge/config.toml)")
	bindCommonFlags(root.PersistentFlags(), &cfg)

	root.AddCommand(newServeCommand(&cfg, &cfgPath), newConnectCommand(&cfg, &cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ebridge:", err)
		os.Exit(1)
	}
}

func bindCommonFlags(fs *pflag.FlagSet, cfg *cliconfig.Config) {
	fs.StringVar(&cfg.Host, "host", cfg.Host, "address to listen on or connect to")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "TCP port")
	fs.StringVar(&cfg.Stack, "stack", cfg.Stack, "stage stack: raw, framed or framed+snappy")
	fs.IntVar(&cfg.MaxBuffer, "max-buffer", cfg.MaxBuffer, "per-direction frame buffer bound in bytes (0 = default)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "worker goroutines for compression stages")
	fs.DurationVar(&cfg.BusyDelay, "busy-delay", cfg.BusyDelay, "event loop delay after a pass that did work")
	fs.DurationVar(&cfg.IdleDelay, "idle-delay", cfg.IdleDelay, "event loop delay after an idle pass")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console or json")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (optional)")
}

// loadConfig layers the config file and EBRIDGE_* variables under the flags
// set on cmd.
func loadConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) error {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	} else if cfgPath != "" {
		return fmt.Errorf("config file %s not found", cfgPath)
	}

	return cliconfig.ApplyEnvConfig(cfg, changed)
}

func newLogger(cfg *cliconfig.Config) (*log.ZerologAdapter, error) {
	lvl, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return log.NewZerologAdapter(cfg.LogFormat, lvl), nil
}

// buildStack resolves the configured stack. The returned stop function
// releases the compression workers.
func buildStack(cfg *cliconfig.Config) (ebridge.StackFactory, func(), error) {
	var exec pipeline.Executor
	stop := func() {}
	if cfg.Stack == ebridge.StackFramedSnappy {
		pool := pipeline.NewPoolExecutor(cfg.Workers)
		exec = pool
		stop = pool.Stop
	}
	stack, err := ebridge.StackByName(cfg.Stack, cfg.MaxBuffer, exec)
	if err != nil {
		stop()
		return nil, nil, err
	}
	return stack, stop, nil
}

// newMetrics returns a registry with the Go runtime collectors, or nil when
// no metrics address is configured.
func newMetrics(cfg *cliconfig.Config) *prometheus.Registry {
	if cfg.MetricsAddr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// serveMetrics exposes reg on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("metrics listening", log.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", log.Err(err))
		}
	}()
}
