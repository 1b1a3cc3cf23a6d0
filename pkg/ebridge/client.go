package ebridge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/ebridge/internal/adapters/netconn"
	"github.com/bft-labs/ebridge/internal/app"
	"github.com/bft-labs/ebridge/internal/conn"
	"github.com/bft-labs/ebridge/internal/domain"
	"github.com/bft-labs/ebridge/internal/ports"
	"github.com/bft-labs/ebridge/pkg/pipeline"
)

// Client keeps one connection to a server open, reconnecting with
// exponential backoff when it drops.
type Client struct {
	config    ClientConfig
	opts      options
	logger    ports.Logger
	lifecycle *app.Lifecycle
	events    eventBridge
	tlsConfig *tls.Config

	writeSlot chan [][]byte
	readBox   chan [][]byte
	connected atomic.Bool
}

type dialResult struct {
	nc  net.Conn
	err error
}

// NewClient validates cfg and creates a stopped client.
func NewClient(cfg ClientConfig, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		config:    cfg,
		opts:      o,
		logger:    o.logger,
		events:    eventBridge{handler: o.eventHandler},
		writeSlot: make(chan [][]byte, 1),
		readBox:   make(chan [][]byte, cfg.ReadDepth),
	}
	c.lifecycle = app.NewLifecycle("client", o.logger, c.events)

	if cfg.TLS {
		tc, err := clientTLSConfig(cfg.CAFile, cfg.Host, cfg.Insecure)
		if err != nil {
			return nil, err
		}
		c.tlsConfig = tc
	}
	return c, nil
}

// Start connects in the background and returns immediately. The client runs
// until ctx is cancelled or Destroy is called.
func (c *Client) Start(ctx context.Context) error {
	if !c.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := c.lifecycle.TransitionTo(app.StateStarting, "Start called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.lifecycle.SetCancel(cancel)

	if err := c.lifecycle.TransitionTo(app.StateRunning, "loop started"); err != nil {
		cancel()
		return err
	}
	c.lifecycle.Go(func() {
		defer cancel()
		c.loop(runCtx)
		if c.lifecycle.State() == app.StateRunning {
			_ = c.lifecycle.TransitionTo(app.StateStopping, "context done")
		}
		_ = c.lifecycle.TransitionTo(app.StateStopped, "loop exited")
	})
	return nil
}

// Write hands payloads to the client. It returns false if the previous
// write has not been taken by the event loop yet; the caller should retry.
// Writes made while disconnected are sent once a connection is up.
func (c *Client) Write(payloads [][]byte) bool {
	if len(payloads) == 0 {
		return true
	}
	select {
	case c.writeSlot <- payloads:
		return true
	default:
		return false
	}
}

// Read returns the next payloads received from the server, or false if none
// are waiting.
func (c *Client) Read() ([][]byte, bool) {
	select {
	case p := <-c.readBox:
		return p, true
	default:
		return nil, false
	}
}

// Connected reports whether the client currently has a live connection.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Status returns the lifecycle state.
func (c *Client) Status() State {
	return State(c.lifecycle.State())
}

// Destroy stops the client, cancels any pending reconnect and closes the
// connection.
func (c *Client) Destroy() error {
	if !c.lifecycle.CanStop() {
		return domain.ErrNotRunning
	}
	_ = c.lifecycle.TransitionTo(app.StateStopping, "Destroy called")
	c.lifecycle.Cancel()
	return c.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
}

func (c *Client) loop(ctx context.Context) {
	var (
		rs      app.RetryState
		cur     *conn.Connection
		dialing <-chan dialResult
		retry   *time.Timer
		retryC  <-chan time.Time
	)

	tick := time.NewTimer(c.config.IdleDelay)
	defer tick.Stop()

	// schedule arms the single reconnect timer after a loss or failed attempt.
	schedule := func(err error) {
		delay := rs.OnLost(c.config.RetryCap)
		c.logger.Warn("disconnected",
			ports.String("addr", c.config.addr()),
			ports.Int("retry", rs.Retry),
			ports.Duration("retry_in", delay),
			ports.Err(err),
		)
		c.events.disconnected(err, rs.Retry, delay)
		if retry != nil {
			retry.Stop()
		}
		retry = time.NewTimer(delay)
		retryC = retry.C
	}

	// The first attempt is not a reconnect and does not count as a retry.
	rs.Retrying = true
	dialing = c.dial(ctx)

	for {
		select {
		case <-ctx.Done():
			if retry != nil {
				retry.Stop()
			}
			if cur != nil {
				c.drop(cur)
			}
			return

		case res := <-dialing:
			dialing = nil
			if res.err != nil {
				schedule(res.err)
				continue
			}
			next, err := c.open(res.nc)
			if err != nil {
				schedule(err)
				continue
			}
			cur = next
			rs.OnConnected()
			c.connected.Store(true)
			c.opts.metrics.ConnOpened()
			cur.Logger().Info("connected")
			c.events.connected(cur.RemoteAddr())
			continue

		case <-retryC:
			retryC = nil
			if rs.BeginAttempt() {
				c.opts.metrics.ReconnectAttempt()
				c.logger.Debug("reconnecting", ports.Int("retry", rs.Retry))
				dialing = c.dial(ctx)
			}
			continue

		case <-tick.C:
		}

		work := false
		if cur != nil {
			work = c.drive(cur, time.Now())
			if cur.State().Done() {
				err := cur.Err()
				if err == nil {
					err = domain.ErrConnectionClosed
				}
				c.drop(cur)
				cur = nil
				schedule(err)
			}
		}

		if work {
			tick.Reset(c.config.BusyDelay)
		} else {
			tick.Reset(c.config.IdleDelay)
		}
	}
}

// drive flushes a pending write, runs one connection cycle and moves
// received blocks to the read mailbox while it has room.
func (c *Client) drive(cur *conn.Connection, now time.Time) bool {
	work := false
	select {
	case payloads := <-c.writeSlot:
		if err := cur.WritePayloads(payloads); err != nil {
			cur.Logger().Warn("write failed", ports.Err(err))
		}
		work = true
	default:
	}

	if cur.Drive(now) {
		work = true
	}

	for len(c.readBox) < cap(c.readBox) {
		blocks := cur.ReadBlocks(-1)
		if len(blocks) == 0 {
			break
		}
		c.readBox <- domain.Payloads(blocks)
		work = true
	}
	return work
}

func (c *Client) drop(cur *conn.Connection) {
	c.connected.Store(false)
	if err := cur.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		cur.Logger().Debug("close", ports.Err(err))
	}
	c.opts.metrics.ConnClosed(cur.State().String())
}

// dial connects in the background so the loop keeps running. The result
// arrives on the returned channel.
func (c *Client) dial(ctx context.Context) <-chan dialResult {
	out := make(chan dialResult, 1)
	addr := c.config.addr()
	c.lifecycle.Go(func() {
		dctx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
		defer cancel()

		var (
			nc  net.Conn
			err error
		)
		if c.tlsConfig != nil {
			d := &tls.Dialer{Config: c.tlsConfig}
			nc, err = d.DialContext(dctx, "tcp", addr)
		} else {
			var d net.Dialer
			nc, err = d.DialContext(dctx, "tcp", addr)
		}
		if err != nil {
			out <- dialResult{err: fmt.Errorf("%w: dial %s: %v", domain.ErrTransport, addr, err)}
			return
		}
		if ctx.Err() != nil {
			_ = nc.Close()
			out <- dialResult{err: ctx.Err()}
			return
		}
		out <- dialResult{nc: nc}
	})
	return out
}

// open wraps an established socket in a connection with fresh stages.
func (c *Client) open(nc net.Conn) (*conn.Connection, error) {
	t := netconn.New(nc, netconn.Options{})
	in := pipeline.New(pipeline.Inbound)
	out := pipeline.New(pipeline.Outbound)
	if err := c.config.Stack(in, out); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("build stages: %w", err)
	}

	cur, err := conn.New(domain.ConnID(uuid.NewString()), t, in, out, time.Now(),
		conn.WithLogger(c.logger),
		conn.WithMetrics(c.opts.metrics),
	)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	if err := cur.Activate(); err != nil {
		_ = t.Close()
		return nil, err
	}
	return cur, nil
}
