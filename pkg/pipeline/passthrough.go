package pipeline

// Passthrough forwards bytes unchanged.
type Passthrough struct {
	buf []byte
}

// NewPassthrough creates an identity byte stage.
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

func (p *Passthrough) Name() string     { return "passthrough" }
func (p *Passthrough) InputKind() Kind  { return KindBytes }
func (p *Passthrough) OutputKind() Kind { return KindBytes }
func (p *Passthrough) Tick() error      { return nil }

// Read returns up to max buffered bytes.
func (p *Passthrough) Read(max int) Payload {
	return Bytes(takeBytes(&p.buf, max))
}

// Write appends in to the output buffer.
func (p *Passthrough) Write(in Payload) (int, error) {
	if err := checkKind(p, in); err != nil {
		return 0, err
	}
	p.buf = append(p.buf, in.Bytes...)
	return len(in.Bytes), nil
}

// Close drops buffered bytes.
func (p *Passthrough) Close() {
	p.buf = nil
}
