package domain

// ConnID identifies one accepted or initiated connection.
// Ids are never reused within a process.
type ConnID string

// Block is one logical unit of payload exchanged over a connection.
// Seq is monotonic within its connection and direction; the payload is opaque.
type Block struct {
	Seq  uint64
	Data []byte
}

// Len returns the payload length.
func (b Block) Len() int {
	return len(b.Data)
}

// Envelope pairs a block with the connection it came from so that a processed
// result can be routed back.
type Envelope struct {
	ConnID ConnID
	Block  Block
}

// Payloads returns the raw payloads of blocks in order.
func Payloads(blocks []Block) [][]byte {
	out := make([][]byte, len(blocks))
	for i, b := range blocks {
		out[i] = b.Data
	}
	return out
}
