package cliconfig

import (
	"os"
	"time"
)

// ApplyEnvConfig applies configuration from environment variables (EBRIDGE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", os.Getenv("EBRIDGE_HOST"), &cfg.Host)
	s.setString("cert", os.Getenv("EBRIDGE_CERT_FILE"), &cfg.CertFile)
	s.setString("key", os.Getenv("EBRIDGE_KEY_FILE"), &cfg.KeyFile)
	s.setString("ca", os.Getenv("EBRIDGE_CA_FILE"), &cfg.CAFile)
	s.setString("stack", os.Getenv("EBRIDGE_STACK"), &cfg.Stack)
	s.setString("processor", os.Getenv("EBRIDGE_PROCESSOR"), &cfg.Processor)
	s.setString("log-level", os.Getenv("EBRIDGE_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("EBRIDGE_LOG_FORMAT"), &cfg.LogFormat)
	s.setString("metrics-addr", os.Getenv("EBRIDGE_METRICS_ADDR"), &cfg.MetricsAddr)

	ints := []struct {
		flag, env string
		dst       *int
	}{
		{"port", "EBRIDGE_PORT", &cfg.Port},
		{"max-buffer", "EBRIDGE_MAX_BUFFER", &cfg.MaxBuffer},
		{"workers", "EBRIDGE_WORKERS", &cfg.Workers},
		{"batch-size", "EBRIDGE_BATCH_SIZE", &cfg.BatchSize},
		{"queue-depth", "EBRIDGE_QUEUE_DEPTH", &cfg.QueueDepth},
	}
	for _, v := range ints {
		if err := s.setIntFromString(v.flag, os.Getenv(v.env), v.dst); err != nil {
			return err
		}
	}

	durations := []struct {
		flag, env string
		dst       *time.Duration
	}{
		{"busy-delay", "EBRIDGE_BUSY_DELAY", &cfg.BusyDelay},
		{"idle-delay", "EBRIDGE_IDLE_DELAY", &cfg.IdleDelay},
		{"retry-cap", "EBRIDGE_RETRY_CAP", &cfg.RetryCap},
		{"stats-interval", "EBRIDGE_STATS_INTERVAL", &cfg.StatsInterval},
	}
	for _, v := range durations {
		if err := s.setDuration(v.flag, os.Getenv(v.env), v.dst); err != nil {
			return err
		}
	}

	s.setBoolFromString("insecure", os.Getenv("EBRIDGE_INSECURE"), &cfg.Insecure)
	s.setBoolFromString("watch-tls", os.Getenv("EBRIDGE_WATCH_TLS"), &cfg.WatchTLS)

	return nil
}
