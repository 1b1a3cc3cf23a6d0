package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	CertFile      string `toml:"cert_file"`
	KeyFile       string `toml:"key_file"`
	CAFile        string `toml:"ca_file"`
	Insecure      *bool  `toml:"insecure"`
	Stack         string `toml:"stack"`
	MaxBuffer     int    `toml:"max_buffer"`
	Workers       int    `toml:"workers"`
	BatchSize     int    `toml:"batch_size"`
	QueueDepth    int    `toml:"queue_depth"`
	Processor     string `toml:"processor"`
	BusyDelay     string `toml:"busy_delay"`
	IdleDelay     string `toml:"idle_delay"`
	RetryCap      string `toml:"retry_cap"`
	StatsInterval string `toml:"stats_interval"`
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	MetricsAddr   string `toml:"metrics_addr"`
	WatchTLS      *bool  `toml:"watch_tls"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.ebridge/config.toml, or "" without a home
// directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".ebridge", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", fc.Host, &cfg.Host)
	s.setString("cert", fc.CertFile, &cfg.CertFile)
	s.setString("key", fc.KeyFile, &cfg.KeyFile)
	s.setString("ca", fc.CAFile, &cfg.CAFile)
	s.setString("stack", fc.Stack, &cfg.Stack)
	s.setString("processor", fc.Processor, &cfg.Processor)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt("max-buffer", fc.MaxBuffer, &cfg.MaxBuffer)
	s.setInt("workers", fc.Workers, &cfg.Workers)
	s.setInt("batch-size", fc.BatchSize, &cfg.BatchSize)
	s.setInt("queue-depth", fc.QueueDepth, &cfg.QueueDepth)

	if err := s.setDuration("busy-delay", fc.BusyDelay, &cfg.BusyDelay); err != nil {
		return err
	}
	if err := s.setDuration("idle-delay", fc.IdleDelay, &cfg.IdleDelay); err != nil {
		return err
	}
	if err := s.setDuration("retry-cap", fc.RetryCap, &cfg.RetryCap); err != nil {
		return err
	}
	if err := s.setDuration("stats-interval", fc.StatsInterval, &cfg.StatsInterval); err != nil {
		return err
	}

	s.setBool("insecure", fc.Insecure, &cfg.Insecure)
	s.setBool("watch-tls", fc.WatchTLS, &cfg.WatchTLS)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
