// Package netconn adapts a net.Conn to ports.Transport. A reader goroutine
// and a writer goroutine own the socket; the event loop only exchanges byte
// chunks with them through bounded channels.
package netconn

import (
	"errors"
	"net"
	"sync"

	"github.com/bft-labs/ebridge/internal/domain"
)

// Defaults for Options.
const (
	DefaultReadBufferSize = 64 << 10
	DefaultRecvDepth      = 64
	DefaultSendDepth      = 256
)

// ErrBacklogFull is returned by Send when the writer has fallen too far behind.
var ErrBacklogFull = domain.ErrBacklogFull

// Options sizes the transport's buffers.
type Options struct {
	ReadBufferSize int
	RecvDepth      int
	SendDepth      int
}

func (o *Options) setDefaults() {
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = DefaultReadBufferSize
	}
	if o.RecvDepth <= 0 {
		o.RecvDepth = DefaultRecvDepth
	}
	if o.SendDepth <= 0 {
		o.SendDepth = DefaultSendDepth
	}
}

// Transport is a ports.Transport over a net.Conn.
type Transport struct {
	conn   net.Conn
	remote string
	recv   chan []byte
	send   chan []byte
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// New starts the reader and writer goroutines for c.
func New(c net.Conn, opts Options) *Transport {
	opts.setDefaults()
	t := &Transport{
		conn:   c,
		remote: c.RemoteAddr().Network() + "://" + c.RemoteAddr().String(),
		recv:   make(chan []byte, opts.RecvDepth),
		send:   make(chan []byte, opts.SendDepth),
		done:   make(chan struct{}),
	}
	go t.readLoop(opts.ReadBufferSize)
	go t.writeLoop()
	return t
}

func (t *Transport) readLoop(size int) {
	defer close(t.recv)
	buf := make([]byte, size)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case t.recv <- chunk:
			case <-t.done:
				return
			}
		}
		if err != nil {
			t.fail(err)
			return
		}
	}
}

func (t *Transport) writeLoop() {
	for {
		select {
		case p := <-t.send:
			if _, err := t.conn.Write(p); err != nil {
				t.fail(err)
				_ = t.Close()
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *Transport) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

func (t *Transport) failure() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Recv returns the next chunk read from the socket without blocking.
func (t *Transport) Recv() ([]byte, error) {
	select {
	case chunk, ok := <-t.recv:
		if !ok {
			if err := t.failure(); err != nil {
				return nil, err
			}
			return nil, net.ErrClosed
		}
		return chunk, nil
	default:
		return nil, nil
	}
}

// Send hands p to the writer goroutine. The transport takes ownership of p.
func (t *Transport) Send(p []byte) error {
	select {
	case <-t.done:
		return net.ErrClosed
	default:
	}
	if err := t.failure(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	select {
	case t.send <- p:
		return nil
	default:
		return ErrBacklogFull
	}
}

// Close stops both goroutines and closes the socket. Queued writes are
// dropped.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	return err
}

// RemoteAddr returns the peer address as network://host:port.
func (t *Transport) RemoteAddr() string {
	return t.remote
}
