package domain

// Batch is the unit handed to the processing stage.
// It maintains the invariant that Envelopes and Blocks have the same length and
// that Blocks[i] is the payload of Envelopes[i].
type Batch struct {
	// Envelopes carries the routing metadata for each item.
	Envelopes []Envelope

	// Blocks contains the payloads handed to the processor.
	Blocks []Block

	// TotalBytes is the sum of all payload lengths.
	TotalBytes int
}

// NewBatch creates an empty batch with room for n items.
func NewBatch(n int) *Batch {
	return &Batch{
		Envelopes: make([]Envelope, 0, n),
		Blocks:    make([]Block, 0, n),
	}
}

// Add appends an envelope and its payload to the batch.
func (b *Batch) Add(env Envelope) {
	b.Envelopes = append(b.Envelopes, env)
	b.Blocks = append(b.Blocks, env.Block)
	b.TotalBytes += env.Block.Len()
}

// Size returns the number of items in the batch.
func (b *Batch) Size() int {
	return len(b.Envelopes)
}

// Empty returns true if the batch has no items.
func (b *Batch) Empty() bool {
	return len(b.Envelopes) == 0
}

// Failure reports that processing failed for an item owned by ConnID.
type Failure struct {
	ConnID ConnID
	Err    error
}

// Result is what the processing stage hands back to the network side:
// envelopes to dispatch and connections to invalidate.
type Result struct {
	Envelopes []Envelope
	Failures  []Failure
}

// Empty returns true if there is nothing to dispatch or invalidate.
func (r Result) Empty() bool {
	return len(r.Envelopes) == 0 && len(r.Failures) == 0
}
