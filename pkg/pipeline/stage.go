package pipeline

import (
	"fmt"

	"github.com/bft-labs/ebridge/internal/domain"
)

// Kind is the type of data a stage consumes or produces.
type Kind int

const (
	// KindBytes is an unstructured byte stream.
	KindBytes Kind = iota
	// KindBlocks is an ordered sequence of blocks.
	KindBlocks
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	case KindBlocks:
		return "blocks"
	default:
		return "unknown"
	}
}

// Payload carries data between stages. Exactly one of Bytes or Blocks is
// meaningful, selected by Kind.
type Payload struct {
	Kind   Kind
	Bytes  []byte
	Blocks []domain.Block
}

// Bytes wraps a byte slice as a payload.
func Bytes(b []byte) Payload {
	return Payload{Kind: KindBytes, Bytes: b}
}

// Blocks wraps blocks as a payload.
func Blocks(b []domain.Block) Payload {
	return Payload{Kind: KindBlocks, Blocks: b}
}

// Len returns the number of bytes or blocks held.
func (p Payload) Len() int {
	if p.Kind == KindBlocks {
		return len(p.Blocks)
	}
	return len(p.Bytes)
}

// Empty returns true if the payload holds no data.
func (p Payload) Empty() bool {
	return p.Len() == 0
}

// Size returns the number of payload bytes held.
func (p Payload) Size() int {
	if p.Kind == KindBlocks {
		n := 0
		for _, b := range p.Blocks {
			n += len(b.Data)
		}
		return n
	}
	return len(p.Bytes)
}

// Stage is one link of a pipeline.
type Stage interface {
	// Name identifies the stage in logs.
	Name() string

	// InputKind is the kind Write accepts.
	InputKind() Kind

	// OutputKind is the kind Read returns.
	OutputKind() Kind

	// Write buffers input and returns the number of payload bytes consumed.
	// An error is fatal to the owning connection.
	Write(in Payload) (int, error)

	// Read returns up to max bytes or blocks of ready output, or all of it
	// when max < 0. It never blocks and may return an empty payload.
	Read(max int) Payload

	// Tick drives asynchronous work. It may be a no-op.
	Tick() error
}

// Closer is implemented by stages that hold resources or in-flight work.
type Closer interface {
	Close()
}

// Describe renders "name: input => output".
func Describe(s Stage) string {
	return fmt.Sprintf("%s: %s => %s", s.Name(), s.InputKind(), s.OutputKind())
}

func checkKind(s Stage, in Payload) error {
	if in.Kind != s.InputKind() {
		return fmt.Errorf("%w: %s accepts %s, got %s", domain.ErrStageMismatch, s.Name(), s.InputKind(), in.Kind)
	}
	return nil
}

// takeBytes removes up to max bytes from the front of *buf.
func takeBytes(buf *[]byte, max int) []byte {
	b := *buf
	if max < 0 || max >= len(b) {
		*buf = nil
		return b
	}
	out := make([]byte, max)
	copy(out, b[:max])
	*buf = b[max:]
	return out
}

// takeBlocks removes up to max blocks from the front of *q.
func takeBlocks(q *[]domain.Block, max int) []domain.Block {
	b := *q
	if max < 0 || max >= len(b) {
		*q = nil
		return b
	}
	out := make([]domain.Block, max)
	copy(out, b[:max])
	*q = b[max:]
	return out
}
