// Package processor provides the built-in processors selectable from the
// command line.
package processor

import (
	"context"
	"fmt"
	"sort"

	"github.com/bft-labs/ebridge/internal/domain"
	"github.com/bft-labs/ebridge/internal/ports"
)

// Echo returns every block unchanged.
type Echo struct{}

func (Echo) Process(_ context.Context, _ string, blocks []domain.Block) ([]domain.Block, error) {
	return blocks, nil
}

// Reverse returns each block with its bytes in reverse order.
type Reverse struct{}

func (Reverse) Process(_ context.Context, _ string, blocks []domain.Block) ([]domain.Block, error) {
	out := make([]domain.Block, len(blocks))
	for i, b := range blocks {
		data := make([]byte, len(b.Data))
		for j, c := range b.Data {
			data[len(data)-1-j] = c
		}
		out[i] = domain.Block{Seq: b.Seq, Data: data}
	}
	return out, nil
}

var builtin = map[string]ports.Processor{
	"echo":    Echo{},
	"reverse": Reverse{},
}

// Lookup returns the built-in processor called name.
func Lookup(name string) (ports.Processor, error) {
	p, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown processor %q (have %v)", domain.ErrInvalidConfig, name, Names())
	}
	return p, nil
}

// Names lists the built-in processors.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
