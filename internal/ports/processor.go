package ports

import (
	"context"

	"github.com/bft-labs/ebridge/internal/domain"
)

// Processor is the external processing capability fed by the batch scheduler.
//
// Process receives the blocks of one sub-batch and a tag identifying it, and
// must return a result slice of the same length in the same order. It may
// modify the input in place and return it.
type Processor interface {
	Process(ctx context.Context, tag string, blocks []domain.Block) ([]domain.Block, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, tag string, blocks []domain.Block) ([]domain.Block, error)

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, tag string, blocks []domain.Block) ([]domain.Block, error) {
	return f(ctx, tag, blocks)
}
