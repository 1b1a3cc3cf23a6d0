// Package registry holds the server's live connections and implements fan-in
// (collect pending inbound blocks across connections) and fan-out (route
// processed blocks back to the connection they came from).
//
// The registry is owned by the server event loop and is not safe for
// concurrent use.
package registry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/bft-labs/ebridge/internal/conn"
	"github.com/bft-labs/ebridge/internal/domain"
	"github.com/bft-labs/ebridge/internal/metrics"
	"github.com/bft-labs/ebridge/internal/ports"
	"github.com/bft-labs/ebridge/pkg/log"
	"github.com/bft-labs/ebridge/pkg/pipeline"
)

// Listener is told when connections join and leave the registry.
type Listener interface {
	OnOpen(c *conn.Connection)
	OnClose(c *conn.Connection)
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(l ports.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithListener(l Listener) Option {
	return func(r *Registry) { r.listener = l }
}

// WithIDGenerator replaces the UUID generator, mainly for tests.
func WithIDGenerator(fn func() domain.ConnID) Option {
	return func(r *Registry) { r.newID = fn }
}

// Registry maps connection ids to live connections.
type Registry struct {
	factory  pipeline.StackFactory
	conns    map[domain.ConnID]*conn.Connection
	order    []domain.ConnID
	logger   ports.Logger
	metrics  *metrics.Metrics
	listener Listener
	newID    func() domain.ConnID
}

// New creates an empty registry that builds every connection's stages with
// factory. A nil factory leaves pipelines as passthroughs.
func New(factory pipeline.StackFactory, opts ...Option) *Registry {
	r := &Registry{
		factory: factory,
		conns:   make(map[domain.ConnID]*conn.Connection),
		logger:  log.NewNoopLogger(),
		newID: func() domain.ConnID {
			return domain.ConnID(uuid.NewString())
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Accept registers a new connection over t with a fresh id. If the stage
// factory fails the transport is closed and the error returned.
func (r *Registry) Accept(t ports.Transport, now time.Time) (*conn.Connection, error) {
	id := r.newID()
	in := pipeline.New(pipeline.Inbound)
	out := pipeline.New(pipeline.Outbound)
	if r.factory != nil {
		if err := r.factory(in, out); err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("build stages for %s: %w", t.RemoteAddr(), err)
		}
	}

	c, err := conn.New(id, t, in, out, now,
		conn.WithLogger(r.logger),
		conn.WithMetrics(r.metrics),
	)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	if err := c.Activate(); err != nil {
		_ = t.Close()
		return nil, err
	}

	r.conns[id] = c
	r.order = append(r.order, id)
	r.metrics.ConnOpened()
	c.Logger().Info("connection accepted", ports.Int("live", len(r.conns)))
	if r.listener != nil {
		r.listener.OnOpen(c)
	}
	return c, nil
}

// Get returns the live connection with id.
func (r *Registry) Get(id domain.ConnID) (*conn.Connection, bool) {
	c, ok := r.conns[id]
	return c, ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

// IDs returns connection ids in accept order.
func (r *Registry) IDs() []domain.ConnID {
	return append([]domain.ConnID(nil), r.order...)
}

// Remove closes and unregisters id. Unknown ids are ignored.
func (r *Registry) Remove(id domain.ConnID) error {
	c, ok := r.conns[id]
	if !ok {
		return nil
	}
	err := c.Close()
	r.forget(c)
	return err
}

func (r *Registry) forget(c *conn.Connection) {
	id := c.ID()
	delete(r.conns, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.metrics.ConnClosed(c.State().String())
	if r.listener != nil {
		r.listener.OnClose(c)
	}
}

// CollectPending drains ready inbound blocks from every active connection in
// accept order, up to limit envelopes (all when limit < 0). Blocks of one
// connection keep their order.
func (r *Registry) CollectPending(limit int) []domain.Envelope {
	var out []domain.Envelope
	for _, id := range r.order {
		want := -1
		if limit >= 0 {
			want = limit - len(out)
			if want <= 0 {
				break
			}
		}
		for _, b := range r.conns[id].ReadBlocks(want) {
			out = append(out, domain.Envelope{ConnID: id, Block: b})
		}
	}
	return out
}

// Dispatch writes each envelope's block into its connection's outbound
// pipeline. Envelopes for connections that are gone are dropped and counted;
// the number dropped is returned.
func (r *Registry) Dispatch(envs []domain.Envelope) int {
	groups := make(map[domain.ConnID][]domain.Block)
	var ids []domain.ConnID
	for _, env := range envs {
		if _, seen := groups[env.ConnID]; !seen {
			ids = append(ids, env.ConnID)
		}
		groups[env.ConnID] = append(groups[env.ConnID], env.Block)
	}

	dropped := 0
	for _, id := range ids {
		blocks := groups[id]
		c, ok := r.conns[id]
		if !ok || c.State() != conn.StateActive {
			dropped += len(blocks)
			r.logger.Debug("dropping results for departed connection",
				ports.String("conn_id", string(id)),
				ports.Int("blocks", len(blocks)),
			)
			continue
		}
		// a write failure invalidates c; Drive removes it
		_ = c.WriteBlocks(blocks)
	}
	r.metrics.Dropped(dropped)
	return dropped
}

// Invalidate tears down id after a processing failure.
func (r *Registry) Invalidate(id domain.ConnID, err error) {
	if c, ok := r.conns[id]; ok {
		c.Invalidate(err)
	}
}

// Drive runs one cycle on every connection, then removes the ones that have
// closed or been invalidated. It reports whether any connection did work.
func (r *Registry) Drive(now time.Time) bool {
	work := false
	var done []*conn.Connection
	for _, id := range r.order {
		c := r.conns[id]
		if c.Drive(now) {
			work = true
		}
		if c.State().Done() {
			done = append(done, c)
		}
	}
	for _, c := range done {
		c.Logger().Info("connection removed",
			ports.String("state", c.State().String()),
			ports.Int("live", len(r.conns)-1),
		)
		r.forget(c)
	}
	return work
}

// Stats snapshots every connection in accept order.
func (r *Registry) Stats(now time.Time) []domain.Stats {
	out := make([]domain.Stats, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.conns[id].Stats(now))
	}
	return out
}

// CloseAll closes every connection and empties the registry.
func (r *Registry) CloseAll() error {
	var errs error
	for _, id := range r.IDs() {
		errs = multierr.Append(errs, r.Remove(id))
	}
	return errs
}
