// Package framing implements the ebridge wire format.
//
// A stream is a sequence of frames, each laid out as:
//
//	[4 bytes] payload length (big-endian uint32)
//	[N bytes] payload
//
// There is no magic number and no version byte. Both ends agree on the stage
// stack out of band before any bytes are exchanged.
package framing

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bft-labs/ebridge/internal/domain"
)

// HeaderSize is the length prefix size in bytes.
const HeaderSize = 4

// DefaultMaxBufferSize bounds buffered-but-incomplete data per direction per
// connection (10 MiB).
const DefaultMaxBufferSize = 10 << 20

// MaxPayloadSize is the largest payload a length prefix can describe.
const MaxPayloadSize = math.MaxUint32

// AppendFrame appends the frame for payload to dst and returns the extended slice.
func AppendFrame(dst, payload []byte) []byte {
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

// Encode returns the concatenated frames of payloads.
func Encode(payloads ...[]byte) []byte {
	out := make([]byte, 0, FramedSize(payloads))
	for _, p := range payloads {
		out = AppendFrame(out, p)
	}
	return out
}

// FramedSize returns the number of wire bytes needed for payloads.
func FramedSize(payloads [][]byte) int {
	n := 0
	for _, p := range payloads {
		n += HeaderSize + len(p)
	}
	return n
}

// PeekLength reads the length prefix at the start of buf without consuming it.
// ok is false when fewer than HeaderSize bytes are available.
func PeekLength(buf []byte) (length uint32, ok bool) {
	if len(buf) < HeaderSize {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[:HeaderSize]), true
}

// Next extracts the first complete frame from buf. It returns the payload, the
// number of bytes consumed, and ok=false when buf holds no complete frame.
// The returned payload is a copy and does not alias buf.
func Next(buf []byte) (payload []byte, consumed int, ok bool) {
	n, ok := PeekLength(buf)
	if !ok {
		return nil, 0, false
	}
	end := HeaderSize + int(n)
	if len(buf) < end {
		return nil, 0, false
	}
	payload = make([]byte, n)
	copy(payload, buf[HeaderSize:end])
	return payload, end, true
}

// CheckBound returns a framing violation when buffered+incoming exceeds max.
// A non-positive max disables the check.
func CheckBound(buffered, incoming, max int) error {
	if max > 0 && buffered+incoming > max {
		return fmt.Errorf("%w: %d buffered + %d incoming exceeds %d bytes",
			domain.ErrFramingViolation, buffered, incoming, max)
	}
	return nil
}
