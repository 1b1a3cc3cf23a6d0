package pipeline

import (
	"fmt"
	"sync"

	"github.com/bft-labs/ebridge/internal/domain"
)

// TransformFunc converts one payload, e.g. an image decode or encode.
// It runs on the executor, never on the event loop.
type TransformFunc func(data []byte) ([]byte, error)

type completion struct {
	block domain.Block
	err   error
}

// Transform applies fn to each block through an Executor. Each ingested block
// gets the next request index; completions land in a pending map and are
// released strictly in index order, so a slow item holds back later ones.
type Transform struct {
	name string
	fn   TransformFunc
	exec Executor

	input   []domain.Block
	nextReq uint64
	output  []domain.Block

	mu      sync.Mutex
	pending map[uint64]completion
	nextOut uint64
	closed  bool
}

// NewTransform creates a transform stage. A nil exec runs fn inline.
func NewTransform(name string, fn TransformFunc, exec Executor) *Transform {
	if exec == nil {
		exec = Inline
	}
	return &Transform{
		name:    name,
		fn:      fn,
		exec:    exec,
		pending: make(map[uint64]completion),
	}
}

func (t *Transform) Name() string     { return "transform:" + t.name }
func (t *Transform) InputKind() Kind  { return KindBlocks }
func (t *Transform) OutputKind() Kind { return KindBlocks }

// Write queues blocks for submission on the next Tick.
func (t *Transform) Write(in Payload) (int, error) {
	if err := checkKind(t, in); err != nil {
		return 0, err
	}
	t.input = append(t.input, in.Blocks...)
	return in.Size(), nil
}

// Tick submits queued blocks and releases completed results in order.
// A failed item makes Tick return ErrTransformFailure.
func (t *Transform) Tick() error {
	queued := t.input
	t.input = nil
	for _, b := range queued {
		idx := t.nextReq
		t.nextReq++
		blk := b
		t.exec.Submit(func() {
			out, err := t.fn(blk.Data)
			t.complete(idx, domain.Block{Seq: blk.Seq, Data: out}, err)
		})
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		c, ok := t.pending[t.nextOut]
		if !ok {
			return nil
		}
		delete(t.pending, t.nextOut)
		if c.err != nil {
			return fmt.Errorf("%w: %s item %d: %v", domain.ErrTransformFailure, t.name, t.nextOut, c.err)
		}
		t.nextOut++
		t.output = append(t.output, c.block)
	}
}

// Read returns up to max released blocks.
func (t *Transform) Read(max int) Payload {
	return Blocks(takeBlocks(&t.output, max))
}

// InFlight returns the number of submitted items not yet released.
func (t *Transform) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(t.nextReq - t.nextOut)
}

// Close drops all buffered and pending data. Work still running on the
// executor completes into nothing.
func (t *Transform) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.pending = make(map[uint64]completion)
	t.input = nil
	t.output = nil
}

// complete is the per-stage completion sink handed to executor tasks.
func (t *Transform) complete(idx uint64, b domain.Block, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.pending[idx] = completion{block: b, err: err}
}
