package ports

// Transport is one established, bidirectional byte stream.
// Both Recv and Send must never block: the event loop that drives connections
// calls them on every pass.
type Transport interface {
	// Recv returns the next received chunk, or (nil, nil) when nothing is
	// pending. Once the stream has ended it returns io.EOF or the read error.
	Recv() ([]byte, error)

	// Send queues p for writing and returns immediately. A full write backlog
	// yields domain.ErrBacklogFull and p is not taken; any other error means
	// the transport is closed or failed.
	Send(p []byte) error

	// Close releases the underlying socket. Pending unsent data is dropped.
	Close() error

	// RemoteAddr describes the peer, e.g. "tcp://10.0.0.1:51000".
	RemoteAddr() string
}
