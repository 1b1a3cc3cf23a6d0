// Package memconn provides in-process ports.Transport pairs. Bytes sent on one
// end are received by the other in the order they were sent.
package memconn

import (
	"io"
	"net"
	"sync"
)

// Transport is one end of an in-memory pipe.
type Transport struct {
	name string
	peer *Transport

	mu         sync.Mutex
	inbox      [][]byte
	sent       []byte
	closed     bool
	peerClosed bool
}

// Pipe returns two connected transports named a and b.
func Pipe(a, b string) (*Transport, *Transport) {
	ta := &Transport{name: a}
	tb := &Transport{name: b}
	ta.peer, tb.peer = tb, ta
	return ta, tb
}

// Recv returns the oldest undelivered chunk, (nil, nil) when idle, or io.EOF
// once the peer has closed and everything it sent has been read.
func (t *Transport) Recv() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, net.ErrClosed
	}
	if len(t.inbox) > 0 {
		chunk := t.inbox[0]
		t.inbox = t.inbox[1:]
		return chunk, nil
	}
	if t.peerClosed {
		return nil, io.EOF
	}
	return nil, nil
}

// Send delivers a copy of p to the peer.
func (t *Transport) Send(p []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return net.ErrClosed
	}
	t.sent = append(t.sent, p...)
	t.mu.Unlock()

	return t.peer.deliver(p)
}

// Inject queues p as if the peer had sent it.
func (t *Transport) Inject(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbox = append(t.inbox, append([]byte(nil), p...))
}

func (t *Transport) deliver(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return net.ErrClosed
	}
	t.inbox = append(t.inbox, append([]byte(nil), p...))
	return nil
}

// Close closes this end. The peer reads io.EOF after draining its inbox.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.inbox = nil
	t.mu.Unlock()

	t.peer.mu.Lock()
	t.peer.peerClosed = true
	t.peer.mu.Unlock()
	return nil
}

// RemoteAddr returns "mem://" plus the peer's name.
func (t *Transport) RemoteAddr() string {
	return "mem://" + t.peer.name
}

// Sent returns every byte sent so far.
func (t *Transport) Sent() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.sent...)
}

// Closed reports whether Close was called on this end.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
