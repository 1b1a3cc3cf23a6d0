package domain

import "errors"

// Domain errors represent error conditions in ebridge.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrFramingViolation is returned when buffered data would exceed the
	// configured maximum. It is fatal to the owning connection only.
	ErrFramingViolation = errors.New("ebridge: framing violation")

	// ErrTransformFailure is returned when a codec or processor reports an
	// error for an item. The owning connection is invalidated.
	ErrTransformFailure = errors.New("ebridge: transform failure")

	// ErrTransport wraps socket-level failures.
	ErrTransport = errors.New("ebridge: transport error")

	// ErrBacklogFull is returned by a transport whose writer has fallen
	// behind. The caller keeps its data and tries again later.
	ErrBacklogFull = errors.New("ebridge: send backlog full")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("ebridge: invalid configuration")

	// ErrStageMismatch is returned when a pipeline stage cannot consume the
	// output of the stage before it.
	ErrStageMismatch = errors.New("ebridge: stage kind mismatch")

	// ErrConnectionClosed is returned when writing to a connection that is no
	// longer active.
	ErrConnectionClosed = errors.New("ebridge: connection closed")

	// ErrAlreadyRunning is returned when Start() or Run() is called on a running instance.
	ErrAlreadyRunning = errors.New("ebridge: already running")

	// ErrNotRunning is returned when Destroy() is called on a stopped instance.
	ErrNotRunning = errors.New("ebridge: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("ebridge: shutdown timeout")
)
