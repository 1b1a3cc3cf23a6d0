package app

import (
	"fmt"

	"github.com/bft-labs/ebridge/internal/domain"
)

// DefaultBatchSize is the processor sub-batch size.
const DefaultBatchSize = 128

// SliceBatch takes the first min(size, len(queue)) envelopes off queue as a
// batch and returns it with the remainder. Order is kept, and Blocks[i] of the
// batch always belongs to Envelopes[i].
func SliceBatch(queue []domain.Envelope, size int) (*domain.Batch, []domain.Envelope) {
	if size <= 0 {
		size = DefaultBatchSize
	}
	n := size
	if len(queue) < n {
		n = len(queue)
	}
	batch := domain.NewBatch(n)
	for _, env := range queue[:n] {
		batch.Add(env)
	}
	return batch, queue[n:]
}

// SplitBatches slices the whole queue into sub-batches of at most size.
func SplitBatches(queue []domain.Envelope, size int) []*domain.Batch {
	var out []*domain.Batch
	for len(queue) > 0 {
		var b *domain.Batch
		b, queue = SliceBatch(queue, size)
		out = append(out, b)
	}
	return out
}

// PackResults pairs processor output with the envelopes of the batch that
// produced it. The result keeps each envelope's connection id and sequence
// number and replaces its data. A length mismatch is a transform failure.
func PackResults(batch *domain.Batch, results []domain.Block) ([]domain.Envelope, error) {
	if len(results) != batch.Size() {
		return nil, fmt.Errorf("%w: processor returned %d blocks for %d inputs",
			domain.ErrTransformFailure, len(results), batch.Size())
	}
	out := make([]domain.Envelope, batch.Size())
	for i, env := range batch.Envelopes {
		out[i] = domain.Envelope{
			ConnID: env.ConnID,
			Block:  domain.Block{Seq: env.Block.Seq, Data: results[i].Data},
		}
	}
	return out, nil
}
