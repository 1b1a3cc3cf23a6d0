package conn

// State is the lifecycle state of one connection.
type State int

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
	// StateInvalid is terminal: a stage failed and the connection was torn down.
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Done reports whether the connection can no longer carry data.
func (s State) Done() bool {
	return s == StateClosed || s == StateInvalid
}
