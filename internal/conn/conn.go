// Package conn implements the per-socket connection state machine: one
// transport, one inbound and one outbound pipeline, liveness and bandwidth.
//
// A Connection is driven from a single event loop and is not safe for
// concurrent use.
package conn

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bft-labs/ebridge/internal/domain"
	"github.com/bft-labs/ebridge/internal/metrics"
	"github.com/bft-labs/ebridge/internal/ports"
	"github.com/bft-labs/ebridge/pkg/log"
	"github.com/bft-labs/ebridge/pkg/pipeline"
)

// maxRecvPerDrive bounds how many transport chunks one Drive pulls so a
// chatty peer cannot starve the others.
const maxRecvPerDrive = 64

// Observer is told about every state change.
type Observer interface {
	OnConnState(c *Connection, prev, next State)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(c *Connection, prev, next State)

func (f ObserverFunc) OnConnState(c *Connection, prev, next State) { f(c, prev, next) }

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the parent logger. The connection adds conn_id and remote.
func WithLogger(l ports.Logger) Option {
	return func(c *Connection) { c.logger = l }
}

// WithMetrics records byte and block counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connection) { c.metrics = m }
}

// WithObserver registers a state change observer.
func WithObserver(o Observer) Option {
	return func(c *Connection) { c.observer = o }
}

// Connection owns one transport and its two pipelines.
type Connection struct {
	id        domain.ConnID
	transport ports.Transport
	in        *pipeline.Pipeline
	out       *pipeline.Pipeline
	state     State
	err       error
	meter     *Meter
	logger    ports.Logger
	metrics   *metrics.Metrics
	observer  Observer

	// outbound bytes the transport refused with a full backlog
	held []byte

	// sequence numbers for pipelines whose ends carry bytes, not blocks
	inSeq  uint64
	outSeq uint64
}

// New wraps transport in a Connecting connection. The inbound pipeline must
// accept bytes and the outbound pipeline must produce bytes; an empty
// pipeline gets a passthrough stage.
func New(id domain.ConnID, transport ports.Transport, in, out *pipeline.Pipeline, now time.Time, opts ...Option) (*Connection, error) {
	if in.Len() == 0 {
		in.MustAppend(pipeline.NewPassthrough())
	}
	if out.Len() == 0 {
		out.MustAppend(pipeline.NewPassthrough())
	}
	if in.InputKind() != pipeline.KindBytes {
		return nil, fmt.Errorf("%w: inbound pipeline must start with a bytes stage, got %s", domain.ErrStageMismatch, in.InputKind())
	}
	if out.OutputKind() != pipeline.KindBytes {
		return nil, fmt.Errorf("%w: outbound pipeline must end with a bytes stage, got %s", domain.ErrStageMismatch, out.OutputKind())
	}

	c := &Connection{
		id:        id,
		transport: transport,
		in:        in,
		out:       out,
		state:     StateConnecting,
		meter:     NewMeter(now),
		logger:    log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(
		ports.String("conn_id", string(id)),
		ports.String("remote", transport.RemoteAddr()),
	)
	return c, nil
}

func (c *Connection) ID() domain.ConnID    { return c.id }
func (c *Connection) State() State         { return c.state }
func (c *Connection) Logger() ports.Logger { return c.logger }

// Err returns the error that ended the connection, if any.
func (c *Connection) Err() error { return c.err }

// RemoteAddr describes the peer.
func (c *Connection) RemoteAddr() string {
	return c.transport.RemoteAddr()
}

// Describe renders both stage stacks.
func (c *Connection) Describe() string {
	return fmt.Sprintf("in[%s] out[%s]", c.in, c.out)
}

// Activate moves a Connecting connection to Active.
func (c *Connection) Activate() error {
	if c.state != StateConnecting {
		return fmt.Errorf("%w: activate from %s", domain.ErrConnectionClosed, c.state)
	}
	c.setState(StateActive)
	c.logger.Debug("connection active", ports.String("stack", c.Describe()))
	return nil
}

// Drive runs one cycle: pull received bytes into the inbound pipeline, pump
// inbound then outbound stages, and send outbound bytes. It reports whether
// any work happened.
func (c *Connection) Drive(now time.Time) bool {
	if c.state != StateActive {
		return false
	}

	work := c.pull()
	if c.state != StateActive {
		return true
	}

	moved, err := pump(c.in)
	if err != nil {
		c.Invalidate(err)
		return true
	}
	work = work || moved

	moved, err = pump(c.out)
	if err != nil {
		c.Invalidate(err)
		return true
	}
	work = work || moved

	if c.held == nil {
		if p := c.out.Read(-1); !p.Empty() {
			c.held = p.Bytes
		}
	}
	if c.held != nil {
		sent, err := c.flush()
		if err != nil {
			c.markClosed(fmt.Errorf("%w: send: %v", domain.ErrTransport, err))
			return true
		}
		work = work || sent
	}

	c.meter.Sample(now)
	return work
}

// flush hands held bytes to the transport. A full backlog keeps them for the
// next Drive; the outbound pipeline is not drained again until they go.
func (c *Connection) flush() (bool, error) {
	err := c.transport.Send(c.held)
	if errors.Is(err, domain.ErrBacklogFull) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	n := len(c.held)
	c.held = nil
	c.meter.AddOut(n)
	c.metrics.AddBytesOut(n)
	return true, nil
}

func (c *Connection) pull() bool {
	work := false
	for i := 0; i < maxRecvPerDrive; i++ {
		chunk, err := c.transport.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.markClosed(nil)
			} else {
				c.markClosed(fmt.Errorf("%w: recv: %v", domain.ErrTransport, err))
			}
			return true
		}
		if chunk == nil {
			return work
		}
		c.meter.AddIn(len(chunk))
		c.metrics.AddBytesIn(len(chunk))
		if _, err := c.in.Write(pipeline.Bytes(chunk)); err != nil {
			c.Invalidate(err)
			return true
		}
		work = true
	}
	return work
}

// pump runs one pass per stage plus one, so output a stage releases in Tick
// reaches the end of the pipeline within the same Drive.
func pump(p *pipeline.Pipeline) (bool, error) {
	movedAny := false
	for i := 0; i <= p.Len(); i++ {
		moved, err := p.Pump()
		if err != nil {
			return true, err
		}
		movedAny = movedAny || moved
	}
	return movedAny, nil
}

// ReadBlocks takes up to max blocks (all when max < 0) from the end of the
// inbound pipeline. A pipeline ending in bytes yields everything buffered as
// one block.
func (c *Connection) ReadBlocks(max int) []domain.Block {
	if c.state != StateActive {
		return nil
	}
	p := c.in.Read(max)
	if p.Empty() {
		return nil
	}
	var blocks []domain.Block
	if p.Kind == pipeline.KindBytes {
		blocks = []domain.Block{{Seq: c.inSeq, Data: p.Bytes}}
		c.inSeq++
	} else {
		blocks = p.Blocks
	}
	c.metrics.AddBlocksIn(len(blocks))
	return blocks
}

// WriteBlocks feeds blocks into the outbound pipeline. A stage error
// invalidates the connection and is returned.
func (c *Connection) WriteBlocks(blocks []domain.Block) error {
	if c.state != StateActive {
		return fmt.Errorf("%w: %s is %s", domain.ErrConnectionClosed, c.id, c.state)
	}
	if len(blocks) == 0 {
		return nil
	}

	var in pipeline.Payload
	if c.out.InputKind() == pipeline.KindBytes {
		var buf []byte
		for _, b := range blocks {
			buf = append(buf, b.Data...)
		}
		in = pipeline.Bytes(buf)
	} else {
		in = pipeline.Blocks(blocks)
	}
	if _, err := c.out.Write(in); err != nil {
		c.Invalidate(err)
		return err
	}
	c.metrics.AddBlocksOut(len(blocks))
	return nil
}

// WritePayloads wraps payloads in blocks numbered from the connection's
// outbound sequence and writes them.
func (c *Connection) WritePayloads(payloads [][]byte) error {
	blocks := make([]domain.Block, len(payloads))
	for i, p := range payloads {
		blocks[i] = domain.Block{Seq: c.outSeq + uint64(i), Data: p}
	}
	if err := c.WriteBlocks(blocks); err != nil {
		return err
	}
	c.outSeq += uint64(len(payloads))
	return nil
}

// Invalidate tears the connection down after an unrecoverable stage or
// processing error. Pending data is dropped and nothing is sent to the peer.
func (c *Connection) Invalidate(err error) {
	if c.state.Done() {
		return
	}
	c.err = err
	c.teardown()
	c.setState(StateInvalid)
	c.logger.Warn("connection invalidated", ports.Err(err))
}

// Close shuts the connection down locally.
func (c *Connection) Close() error {
	if c.state.Done() {
		return nil
	}
	c.setState(StateClosing)
	err := c.teardown()
	c.setState(StateClosed)
	c.logger.Debug("connection closed")
	return err
}

// markClosed handles a transport that ended on its own.
func (c *Connection) markClosed(err error) {
	if c.state.Done() {
		return
	}
	c.err = err
	c.teardown()
	c.setState(StateClosed)
	if err != nil {
		c.logger.Info("connection lost", ports.Err(err))
	} else {
		c.logger.Debug("peer closed connection")
	}
}

func (c *Connection) teardown() error {
	c.held = nil
	c.in.Close()
	c.out.Close()
	return c.transport.Close()
}

func (c *Connection) setState(next State) {
	prev := c.state
	c.state = next
	if c.observer != nil {
		c.observer.OnConnState(c, prev, next)
	}
}

// Stats returns the current bandwidth figures.
func (c *Connection) Stats(now time.Time) domain.Stats {
	bwIn, bwOut := c.meter.Bandwidth()
	totIn, totOut := c.meter.Totals()
	return domain.Stats{
		ConnID:       c.id,
		Remote:       c.transport.RemoteAddr(),
		BandwidthIn:  bwIn,
		BandwidthOut: bwOut,
		TotalIn:      totIn,
		TotalOut:     totOut,
		SampledAt:    now,
	}
}
