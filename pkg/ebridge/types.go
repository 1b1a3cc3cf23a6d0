package ebridge

import (
	"github.com/bft-labs/ebridge/internal/domain"
	"github.com/bft-labs/ebridge/internal/ports"
	"github.com/bft-labs/ebridge/pkg/log"
)

// Block is one unit of payload with its per-connection sequence number.
type Block = domain.Block

// ConnID identifies a server-side connection.
type ConnID = domain.ConnID

// Stats is a traffic snapshot of one connection.
type Stats = domain.Stats

// Processor is the processing capability fed by the server. It receives one
// sub-batch of blocks and a tag, and must return the same number of blocks in
// the same order.
type Processor = ports.Processor

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc = ports.ProcessorFunc

// Logger is the structured logger accepted by WithLogger.
type Logger = log.Logger

// Errors returned by the server, the client and their connections.
var (
	ErrFramingViolation = domain.ErrFramingViolation
	ErrTransformFailure = domain.ErrTransformFailure
	ErrTransport        = domain.ErrTransport
	ErrInvalidConfig    = domain.ErrInvalidConfig
	ErrStageMismatch    = domain.ErrStageMismatch
	ErrConnectionClosed = domain.ErrConnectionClosed
	ErrAlreadyRunning   = domain.ErrAlreadyRunning
	ErrNotRunning       = domain.ErrNotRunning
	ErrShutdownTimeout  = domain.ErrShutdownTimeout
)
