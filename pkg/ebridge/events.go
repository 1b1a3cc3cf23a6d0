package ebridge

import (
	"time"

	"github.com/bft-labs/ebridge/internal/app"
	"github.com/bft-labs/ebridge/internal/conn"
)

// State is the lifecycle state of a Server or Client.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

func (s State) String() string {
	return app.State(s).String()
}

// StateChangeEvent reports a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// ConnectionEvent reports a server connection opening or closing.
type ConnectionEvent struct {
	ID     ConnID
	Remote string
	// State is the connection state: "active" on open, "closed" or
	// "invalid" on close.
	State string
	Err   error
}

// ConnectedEvent reports that the client established a connection.
type ConnectedEvent struct {
	Remote string
}

// DisconnectedEvent reports a lost connection or a failed attempt, and when
// the client will try again.
type DisconnectedEvent struct {
	Err     error
	Retry   int
	RetryIn time.Duration
}

// EventHandler receives notifications from a Server or Client. Calls are made
// from the event loop goroutine.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnConnectionOpened(ConnectionEvent)
	OnConnectionClosed(ConnectionEvent)
	OnConnected(ConnectedEvent)
	OnDisconnected(DisconnectedEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to handle
// only the events you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)     {}
func (BaseEventHandler) OnConnectionOpened(ConnectionEvent) {}
func (BaseEventHandler) OnConnectionClosed(ConnectionEvent) {}
func (BaseEventHandler) OnConnected(ConnectedEvent)         {}
func (BaseEventHandler) OnDisconnected(DisconnectedEvent)   {}

// eventBridge adapts an EventHandler to the internal observer interfaces.
type eventBridge struct {
	handler EventHandler
}

func (e eventBridge) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: State(previous),
		Current:  State(current),
		Reason:   reason,
	})
}

func (e eventBridge) OnOpen(c *conn.Connection) {
	if e.handler == nil {
		return
	}
	e.handler.OnConnectionOpened(connEvent(c))
}

func (e eventBridge) OnClose(c *conn.Connection) {
	if e.handler == nil {
		return
	}
	e.handler.OnConnectionClosed(connEvent(c))
}

func (e eventBridge) connected(remote string) {
	if e.handler != nil {
		e.handler.OnConnected(ConnectedEvent{Remote: remote})
	}
}

func (e eventBridge) disconnected(err error, retry int, in time.Duration) {
	if e.handler != nil {
		e.handler.OnDisconnected(DisconnectedEvent{Err: err, Retry: retry, RetryIn: in})
	}
}

func connEvent(c *conn.Connection) ConnectionEvent {
	return ConnectionEvent{
		ID:     c.ID(),
		Remote: c.RemoteAddr(),
		State:  c.State().String(),
		Err:    c.Err(),
	}
}
