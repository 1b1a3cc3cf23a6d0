package ebridge

import (
	"fmt"

	"github.com/bft-labs/ebridge/internal/domain"
	"github.com/bft-labs/ebridge/pkg/codec"
	"github.com/bft-labs/ebridge/pkg/pipeline"
)

// StackFactory builds the stages of each new connection.
type StackFactory = pipeline.StackFactory

// Named stacks understood by StackByName. Both ends of a connection must use
// the same one.
const (
	StackRaw          = "raw"
	StackFramed       = "framed"
	StackFramedSnappy = "framed+snappy"
)

// RawStack passes bytes through untouched in both directions. Reads return
// whatever arrived since the last read as one block.
func RawStack() StackFactory {
	return func(in, out *pipeline.Pipeline) error {
		if err := in.Append(pipeline.NewPassthrough()); err != nil {
			return err
		}
		return out.Append(pipeline.NewPassthrough())
	}
}

// FramedStack splits inbound bytes into length-prefixed frames and frames
// outbound blocks. maxBuffer bounds each direction's buffer; zero selects
// framing.DefaultMaxBufferSize.
func FramedStack(maxBuffer int) StackFactory {
	return func(in, out *pipeline.Pipeline) error {
		if err := in.Append(pipeline.NewSplitter(maxBuffer)); err != nil {
			return err
		}
		return out.Append(pipeline.NewJoiner(maxBuffer))
	}
}

// FramedSnappyStack is FramedStack with every block snappy-compressed on the
// wire. Compression runs on exec; nil runs it inline.
func FramedSnappyStack(maxBuffer int, exec pipeline.Executor) StackFactory {
	return func(in, out *pipeline.Pipeline) error {
		for _, s := range []pipeline.Stage{
			pipeline.NewSplitter(maxBuffer),
			pipeline.NewTransform("snappy-decode", codec.SnappyDecode, exec),
		} {
			if err := in.Append(s); err != nil {
				return err
			}
		}
		for _, s := range []pipeline.Stage{
			pipeline.NewTransform("snappy-encode", codec.SnappyEncode, exec),
			pipeline.NewJoiner(maxBuffer),
		} {
			if err := out.Append(s); err != nil {
				return err
			}
		}
		return nil
	}
}

// StackByName returns the named stack.
func StackByName(name string, maxBuffer int, exec pipeline.Executor) (StackFactory, error) {
	switch name {
	case StackRaw:
		return RawStack(), nil
	case StackFramed, "":
		return FramedStack(maxBuffer), nil
	case StackFramedSnappy:
		return FramedSnappyStack(maxBuffer, exec), nil
	default:
		return nil, fmt.Errorf("%w: unknown stack %q", domain.ErrInvalidConfig, name)
	}
}
