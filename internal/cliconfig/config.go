package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/ebridge/internal/domain"
)

// Config holds CLI configuration shared by `ebridge serve` and
// `ebridge connect`.
type Config struct {
	Host string
	Port int

	CertFile string
	KeyFile  string
	CAFile   string
	Insecure bool

	Stack     string
	MaxBuffer int
	Workers   int

	BatchSize  int
	QueueDepth int
	Processor  string

	BusyDelay     time.Duration
	IdleDelay     time.Duration
	RetryCap      time.Duration
	StatsInterval time.Duration

	LogLevel    string
	LogFormat   string
	MetricsAddr string
	WatchTLS    bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Host:          "127.0.0.1",
		Port:          7000,
		Stack:         "framed",
		MaxBuffer:     0, // framing default
		Workers:       4,
		BatchSize:     128,
		QueueDepth:    4,
		Processor:     "echo",
		BusyDelay:     time.Millisecond,
		IdleDelay:     20 * time.Millisecond,
		RetryCap:      20 * time.Second,
		StatsInterval: 10 * time.Second,
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// ValidateServer checks the settings `ebridge serve` needs.
// Port 0 asks the OS for a free port.
func (c *Config) ValidateServer() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", domain.ErrInvalidConfig, c.Port)
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("%w: cert and key must be set together", domain.ErrInvalidConfig)
	}
	if c.WatchTLS && c.CertFile == "" {
		return fmt.Errorf("%w: watch-tls needs cert and key", domain.ErrInvalidConfig)
	}
	if c.Processor == "" {
		return fmt.Errorf("%w: processor is required", domain.ErrInvalidConfig)
	}
	return nil
}

// ValidateClient checks the settings `ebridge connect` needs.
func (c *Config) ValidateClient() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port is required", domain.ErrInvalidConfig)
	}
	return nil
}

func (c *Config) validateCommon() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", domain.ErrInvalidConfig)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("%w: log format %q (want console or json)", domain.ErrInvalidConfig, c.LogFormat)
	}
	if c.MaxBuffer < 0 {
		return fmt.Errorf("%w: max-buffer must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
