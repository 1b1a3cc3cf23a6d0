package pipeline

import (
	"fmt"
	"strings"

	"github.com/bft-labs/ebridge/internal/domain"
)

// Direction names which way a pipeline carries data.
type Direction string

const (
	// Inbound pipelines turn received bytes into blocks.
	Inbound Direction = "inbound"
	// Outbound pipelines turn blocks into bytes to send.
	Outbound Direction = "outbound"
)

// StackFactory appends the stages for a new connection to its inbound and
// outbound pipelines. It is called once per accepted or established
// connection.
type StackFactory func(in, out *Pipeline) error

// Pipeline is an ordered chain of stages for one direction of one connection.
// Data leaving stage i enters stage i+1 in the order it was produced.
type Pipeline struct {
	dir    Direction
	stages []Stage
}

// New creates an empty pipeline.
func New(dir Direction) *Pipeline {
	return &Pipeline{dir: dir}
}

// Direction returns the pipeline direction.
func (p *Pipeline) Direction() Direction {
	return p.dir
}

// Append adds a stage to the end of the pipeline. It fails when the stage
// cannot consume what the current last stage produces.
func (p *Pipeline) Append(s Stage) error {
	if n := len(p.stages); n > 0 {
		prev := p.stages[n-1]
		if prev.OutputKind() != s.InputKind() {
			return fmt.Errorf("%w: %s pipeline: %s produces %s but %s accepts %s",
				domain.ErrStageMismatch, p.dir, prev.Name(), prev.OutputKind(), s.Name(), s.InputKind())
		}
	}
	p.stages = append(p.stages, s)
	return nil
}

// MustAppend appends every stage and panics on a kind mismatch.
// Intended for statically known stacks.
func (p *Pipeline) MustAppend(stages ...Stage) *Pipeline {
	for _, s := range stages {
		if err := p.Append(s); err != nil {
			panic(err)
		}
	}
	return p
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Stages returns the stages in order.
func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// InputKind returns the kind accepted by the first stage.
func (p *Pipeline) InputKind() Kind {
	if len(p.stages) == 0 {
		return KindBytes
	}
	return p.stages[0].InputKind()
}

// OutputKind returns the kind produced by the last stage.
func (p *Pipeline) OutputKind() Kind {
	if len(p.stages) == 0 {
		return KindBytes
	}
	return p.stages[len(p.stages)-1].OutputKind()
}

// Write feeds input to the first stage.
func (p *Pipeline) Write(in Payload) (int, error) {
	if len(p.stages) == 0 {
		return 0, fmt.Errorf("%w: %s pipeline has no stages", domain.ErrStageMismatch, p.dir)
	}
	return p.stages[0].Write(in)
}

// Pump moves ready output from each stage into the next, in stage order, then
// ticks every stage. It reports whether any data moved between stages.
func (p *Pipeline) Pump() (bool, error) {
	moved := false
	for i := 0; i < len(p.stages)-1; i++ {
		out := p.stages[i].Read(-1)
		if out.Empty() {
			continue
		}
		if _, err := p.stages[i+1].Write(out); err != nil {
			return moved, fmt.Errorf("%s pipeline stage %s: %w", p.dir, p.stages[i+1].Name(), err)
		}
		moved = true
	}
	for _, s := range p.stages {
		if err := s.Tick(); err != nil {
			return moved, fmt.Errorf("%s pipeline stage %s: %w", p.dir, s.Name(), err)
		}
	}
	return moved, nil
}

// Read returns up to max units of output from the last stage.
func (p *Pipeline) Read(max int) Payload {
	if len(p.stages) == 0 {
		return Payload{}
	}
	return p.stages[len(p.stages)-1].Read(max)
}

// Close drops data buffered in every stage.
func (p *Pipeline) Close() {
	for _, s := range p.stages {
		if c, ok := s.(Closer); ok {
			c.Close()
		}
	}
}

// String describes the stack, e.g. "frame-splitter -> transform:decode".
func (p *Pipeline) String() string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return strings.Join(names, " -> ")
}
