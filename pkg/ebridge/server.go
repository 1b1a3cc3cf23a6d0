package ebridge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/ebridge/internal/adapters/netconn"
	"github.com/bft-labs/ebridge/internal/app"
	"github.com/bft-labs/ebridge/internal/domain"
	"github.com/bft-labs/ebridge/internal/ports"
	"github.com/bft-labs/ebridge/internal/registry"
	"github.com/bft-labs/ebridge/internal/scheduler"
)

// acceptBacklog bounds accepted sockets waiting for the event loop.
const acceptBacklog = 64

// Server accepts connections, batches their blocks through a Processor and
// sends the results back.
type Server struct {
	config    ServerConfig
	opts      options
	logger    ports.Logger
	lifecycle *app.Lifecycle
	events    eventBridge
	certs     *CertStore

	mu    sync.RWMutex
	addr  net.Addr
	ready chan struct{}
	stats []Stats
}

// NewServer validates cfg and creates a stopped server.
func NewServer(cfg ServerConfig, opts ...Option) (*Server, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		config: cfg,
		opts:   o,
		logger: o.logger,
		events: eventBridge{handler: o.eventHandler},
		ready:  make(chan struct{}),
	}
	s.lifecycle = app.NewLifecycle("server", o.logger, s.events)

	if cfg.TLS() {
		certs, err := LoadCertStore(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		s.certs = certs
	}
	return s, nil
}

// Run listens and serves until ctx is cancelled or Destroy is called. It
// returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	if !s.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	s.lifecycle.AddWorker()
	defer s.lifecycle.WorkerDone()
	if err := s.lifecycle.TransitionTo(app.StateStarting, "Run called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.lifecycle.SetCancel(cancel)

	ln, err := s.listen()
	if err != nil {
		_ = s.lifecycle.TransitionTo(app.StateCrashed, "listen failed")
		return err
	}

	reg := registry.New(s.config.Stack,
		registry.WithLogger(s.logger),
		registry.WithMetrics(s.opts.metrics),
		registry.WithListener(s.events),
	)
	sched, err := scheduler.New(reg, scheduler.Config{
		BatchSize:  s.config.BatchSize,
		QueueDepth: s.config.QueueDepth,
		Processor:  s.config.Processor,
		Logger:     s.logger,
		Metrics:    s.opts.metrics,
	})
	if err != nil {
		_ = ln.Close()
		_ = s.lifecycle.TransitionTo(app.StateCrashed, "scheduler")
		return err
	}

	if err := s.initPlugins(runCtx); err != nil {
		_ = ln.Close()
		_ = s.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed")
		return err
	}

	if err := s.lifecycle.TransitionTo(app.StateRunning, "listening"); err != nil {
		// Destroy won the race while starting.
		_ = ln.Close()
		s.shutdownPlugins()
		s.reset()
		_ = s.lifecycle.TransitionTo(app.StateStopped, "stopped while starting")
		return nil
	}
	s.logger.Info("server listening",
		ports.String("addr", ln.Addr().String()),
		ports.Bool("tls", s.certs != nil),
		ports.Int("batch_size", s.config.BatchSize),
	)

	accepted := make(chan net.Conn, acceptBacklog)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return s.acceptLoop(gctx, ln, accepted) })
	g.Go(func() error {
		<-gctx.Done()
		_ = ln.Close()
		return nil
	})
	g.Go(func() error { return s.eventLoop(gctx, reg, sched, accepted) })
	g.Go(func() error {
		err := sched.RunProcessing(gctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})
	runErr := g.Wait()
	closeAccepted(accepted)

	if s.lifecycle.State() == app.StateRunning {
		_ = s.lifecycle.TransitionTo(app.StateStopping, "context done")
	}
	s.shutdownPlugins()
	s.reset()

	if runErr != nil {
		s.logger.Error("server stopped with error", ports.Err(runErr))
		_ = s.lifecycle.TransitionTo(app.StateCrashed, runErr.Error())
		return runErr
	}
	_ = s.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.config.addr())
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %v", domain.ErrTransport, s.config.addr(), err)
	}
	if s.certs != nil {
		ln = tls.NewListener(ln, serverTLSConfig(s.certs))
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	close(s.ready)
	s.mu.Unlock()
	return ln, nil
}

// reset prepares a stopped server for another Run.
func (s *Server) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = make(chan struct{})
	s.stats = nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, accepted chan<- net.Conn) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("%w: accept: %v", domain.ErrTransport, err)
		}
		select {
		case accepted <- c:
		case <-ctx.Done():
			_ = c.Close()
			return nil
		}
	}
}

// closeAccepted closes sockets accepted after the event loop stopped taking
// them. It must run once nothing sends on accepted.
func closeAccepted(accepted chan net.Conn) {
	for {
		select {
		case c := <-accepted:
			_ = c.Close()
		default:
			return
		}
	}
}

// eventLoop owns the registry. It accepts new sockets, drives every
// connection and runs the scheduler's network pass.
func (s *Server) eventLoop(ctx context.Context, reg *registry.Registry, sched *scheduler.Scheduler, accepted <-chan net.Conn) error {
	defer func() {
		if err := reg.CloseAll(); err != nil {
			s.logger.Debug("closing connections", ports.Err(err))
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()
	lastStats := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-accepted:
			if _, err := reg.Accept(netconn.New(c, netconn.Options{}), time.Now()); err != nil {
				s.logger.Warn("rejecting connection",
					ports.String("remote", c.RemoteAddr().String()),
					ports.Err(err),
				)
			}
			continue
		case <-timer.C:
		}

		now := time.Now()
		work := reg.Drive(now)
		if sched.NetworkPass() {
			work = true
		}

		if now.Sub(lastStats) >= s.config.StatsInterval {
			s.publishStats(reg.Stats(now))
			lastStats = now
		}

		if work {
			timer.Reset(s.config.BusyDelay)
		} else {
			timer.Reset(s.config.IdleDelay)
		}
	}
}

func (s *Server) publishStats(stats []Stats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

// Stats returns the latest per-connection traffic snapshot.
func (s *Server) Stats() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Stats(nil), s.stats...)
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Addr returns the listening address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Status returns the lifecycle state.
func (s *Server) Status() State {
	return State(s.lifecycle.State())
}

// Destroy stops the server. The processing goroutine finishes its current
// batch, connections are closed, and Destroy waits up to ShutdownTimeout for
// Run to return.
func (s *Server) Destroy() error {
	if !s.lifecycle.CanStop() {
		return domain.ErrNotRunning
	}
	_ = s.lifecycle.TransitionTo(app.StateStopping, "Destroy called")
	s.lifecycle.Cancel()
	return s.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
}

func (s *Server) initPlugins(ctx context.Context) error {
	cfg := PluginConfig{
		Logger:       s.logger,
		Stats:        s.Stats,
		CertFile:     s.config.CertFile,
		KeyFile:      s.config.KeyFile,
		Certificates: s.certs,
	}
	for i, p := range s.opts.plugins {
		if err := p.Initialize(ctx, cfg); err != nil {
			s.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err),
			)
			s.shutdownPluginList(s.opts.plugins[:i])
			return fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		s.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}
	return nil
}

func (s *Server) shutdownPlugins() {
	s.shutdownPluginList(s.opts.plugins)
}

// shutdownPluginList shuts plugins down in reverse order.
func (s *Server) shutdownPluginList(plugins []Plugin) {
	ctx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()

	var errs error
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("plugin %s: %w", p.Name(), err))
			continue
		}
		s.logger.Debug("plugin shutdown complete", ports.String("plugin", p.Name()))
	}
	if errs != nil {
		s.logger.Error("plugin shutdown failed", ports.Err(errs))
	}
}
