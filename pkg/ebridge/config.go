package ebridge

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/bft-labs/ebridge/internal/app"
	"github.com/bft-labs/ebridge/internal/domain"
	"github.com/bft-labs/ebridge/internal/scheduler"
)

// Loop delays.
const (
	DefaultBusyDelay = time.Millisecond
	DefaultIdleDelay = 20 * time.Millisecond
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Host and Port to listen on. Port 0 picks a free port; see Server.Addr.
	Host string
	Port int

	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string

	// Stack builds each connection's stages. Default: FramedStack(0).
	Stack StackFactory

	// Processor receives batches of inbound blocks. Required.
	Processor Processor

	// BatchSize is the largest sub-batch handed to Processor. Default: 128.
	BatchSize int

	// QueueDepth bounds the queues to and from the processing goroutine.
	// Default: 4.
	QueueDepth int

	// BusyDelay and IdleDelay pace the event loop after a pass that did or
	// did not do work.
	BusyDelay time.Duration
	IdleDelay time.Duration

	// StatsInterval is how often connection stats are snapshotted for
	// Stats and plugins. Default: 1s.
	StatsInterval time.Duration
}

// SetDefaults fills unset fields.
func (c *ServerConfig) SetDefaults() {
	if c.Stack == nil {
		c.Stack = FramedStack(0)
	}
	if c.BatchSize <= 0 {
		c.BatchSize = app.DefaultBatchSize
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = scheduler.DefaultQueueDepth
	}
	if c.BusyDelay <= 0 {
		c.BusyDelay = DefaultBusyDelay
	}
	if c.IdleDelay <= 0 {
		c.IdleDelay = DefaultIdleDelay
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = time.Second
	}
}

// Validate reports missing or inconsistent settings.
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", domain.ErrInvalidConfig)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", domain.ErrInvalidConfig, c.Port)
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("%w: TLS needs both a certificate and a key", domain.ErrInvalidConfig)
	}
	if c.Processor == nil {
		return fmt.Errorf("%w: processor is required", domain.ErrInvalidConfig)
	}
	return nil
}

// TLS reports whether the server listens with TLS.
func (c *ServerConfig) TLS() bool {
	return c.CertFile != ""
}

func (c *ServerConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Host string
	Port int

	// TLS enables TLS. CAFile adds a trusted root; Insecure skips server
	// certificate verification.
	TLS      bool
	CAFile   string
	Insecure bool

	// Stack builds the connection's stages on every (re)connect.
	// Default: FramedStack(0).
	Stack StackFactory

	// RetryCap is the longest wait between reconnect attempts. Default: 20s.
	RetryCap time.Duration

	// DialTimeout bounds one connection attempt. Default: 10s.
	DialTimeout time.Duration

	// ReadDepth is how many reads can wait for Read before the client stops
	// draining the connection. Default: 16.
	ReadDepth int

	BusyDelay time.Duration
	IdleDelay time.Duration
}

// SetDefaults fills unset fields.
func (c *ClientConfig) SetDefaults() {
	if c.Stack == nil {
		c.Stack = FramedStack(0)
	}
	if c.RetryCap <= 0 {
		c.RetryCap = app.DefaultRetryCap
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.ReadDepth <= 0 {
		c.ReadDepth = 16
	}
	if c.BusyDelay <= 0 {
		c.BusyDelay = DefaultBusyDelay
	}
	if c.IdleDelay <= 0 {
		c.IdleDelay = DefaultIdleDelay
	}
	if c.CAFile != "" || c.Insecure {
		c.TLS = true
	}
}

// Validate reports missing or inconsistent settings.
func (c *ClientConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", domain.ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port is required", domain.ErrInvalidConfig)
	}
	return nil
}

func (c *ClientConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
