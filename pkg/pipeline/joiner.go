package pipeline

import (
	"github.com/bft-labs/ebridge/pkg/framing"
)

// Joiner serializes blocks as length-prefixed frames.
type Joiner struct {
	max int
	buf []byte
}

// NewJoiner creates a joiner bounded by max buffered bytes.
// A non-positive max selects framing.DefaultMaxBufferSize.
func NewJoiner(max int) *Joiner {
	if max <= 0 {
		max = framing.DefaultMaxBufferSize
	}
	return &Joiner{max: max}
}

func (j *Joiner) Name() string     { return "frame-joiner" }
func (j *Joiner) InputKind() Kind  { return KindBlocks }
func (j *Joiner) OutputKind() Kind { return KindBytes }
func (j *Joiner) Tick() error      { return nil }

// Write frames every block in order. The whole write is rejected if it would
// push the output buffer past max.
func (j *Joiner) Write(in Payload) (int, error) {
	if err := checkKind(j, in); err != nil {
		return 0, err
	}
	total := 0
	for _, b := range in.Blocks {
		total += framing.HeaderSize + len(b.Data)
	}
	if err := framing.CheckBound(len(j.buf), total, j.max); err != nil {
		return 0, err
	}
	for _, b := range in.Blocks {
		j.buf = framing.AppendFrame(j.buf, b.Data)
	}
	return in.Size(), nil
}

// Read returns up to max framed bytes.
func (j *Joiner) Read(max int) Payload {
	return Bytes(takeBytes(&j.buf, max))
}

// Close drops buffered bytes.
func (j *Joiner) Close() {
	j.buf = nil
}
