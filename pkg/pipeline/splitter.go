package pipeline

import (
	"github.com/bft-labs/ebridge/internal/domain"
	"github.com/bft-labs/ebridge/pkg/framing"
)

// Splitter turns a length-prefixed byte stream into blocks.
// Partial frames stay buffered across writes; the buffer never grows past max.
type Splitter struct {
	max    int
	buf    []byte
	blocks []domain.Block
	seq    uint64
}

// NewSplitter creates a splitter bounded by max buffered bytes.
// A non-positive max selects framing.DefaultMaxBufferSize.
func NewSplitter(max int) *Splitter {
	if max <= 0 {
		max = framing.DefaultMaxBufferSize
	}
	return &Splitter{max: max}
}

func (s *Splitter) Name() string     { return "frame-splitter" }
func (s *Splitter) InputKind() Kind  { return KindBytes }
func (s *Splitter) OutputKind() Kind { return KindBlocks }
func (s *Splitter) Tick() error      { return nil }

// Buffered returns the number of bytes held for incomplete frames.
func (s *Splitter) Buffered() int {
	return len(s.buf)
}

// Write appends stream bytes and extracts every complete frame.
func (s *Splitter) Write(in Payload) (int, error) {
	if err := checkKind(s, in); err != nil {
		return 0, err
	}
	if err := framing.CheckBound(len(s.buf), len(in.Bytes), s.max); err != nil {
		return 0, err
	}
	s.buf = append(s.buf, in.Bytes...)

	off := 0
	for {
		payload, n, ok := framing.Next(s.buf[off:])
		if !ok {
			break
		}
		off += n
		s.blocks = append(s.blocks, domain.Block{Seq: s.seq, Data: payload})
		s.seq++
	}
	if off > 0 {
		rest := len(s.buf) - off
		copy(s.buf, s.buf[off:])
		s.buf = s.buf[:rest]
	}
	return len(in.Bytes), nil
}

// Read returns up to max extracted blocks.
func (s *Splitter) Read(max int) Payload {
	return Blocks(takeBlocks(&s.blocks, max))
}

// Close drops buffered bytes and blocks.
func (s *Splitter) Close() {
	s.buf = nil
	s.blocks = nil
}
