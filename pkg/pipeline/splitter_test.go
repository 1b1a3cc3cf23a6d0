package pipeline

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/ebridge/internal/domain"
	"github.com/bft-labs/ebridge/pkg/framing"
)

func blocksOf(payloads ...string) []domain.Block {
	out := make([]domain.Block, len(payloads))
	for i, p := range payloads {
		out[i] = domain.Block{Seq: uint64(i), Data: []byte(p)}
	}
	return out
}

func payloadStrings(blocks []domain.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = string(b.Data)
	}
	return out
}

func TestJoinerSplitter_ScenarioA(t *testing.T) {
	j := NewJoiner(0)
	s := NewSplitter(0)

	_, err := j.Write(Blocks(blocksOf("a", "bb")))
	require.NoError(t, err)

	wire := j.Read(-1)
	require.Equal(t, KindBytes, wire.Kind)
	assert.Equal(t, []byte{0, 0, 0, 1, 'a', 0, 0, 0, 2, 'b', 'b'}, wire.Bytes)

	_, err = s.Write(wire)
	require.NoError(t, err)

	got := s.Read(-1)
	assert.Equal(t, []string{"a", "bb"}, payloadStrings(got.Blocks))
	assert.Equal(t, uint64(0), got.Blocks[0].Seq)
	assert.Equal(t, uint64(1), got.Blocks[1].Seq)
}

func TestSplitter_ArbitraryChunking(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(20)
		want := make([][]byte, n)
		for i := range want {
			p := make([]byte, rng.Intn(300))
			rng.Read(p)
			want[i] = p
		}
		wire := framing.Encode(want...)

		s := NewSplitter(0)
		for off := 0; off < len(wire); {
			step := 1 + rng.Intn(17)
			if off+step > len(wire) {
				step = len(wire) - off
			}
			_, err := s.Write(Bytes(wire[off : off+step]))
			require.NoError(t, err)
			off += step
		}

		got := s.Read(-1).Blocks
		require.Len(t, got, n, "iteration %d", iter)
		for i := range want {
			if !bytes.Equal(want[i], got[i].Data) {
				t.Fatalf("iteration %d block %d differs", iter, i)
			}
			assert.Equal(t, uint64(i), got[i].Seq)
		}
		assert.Zero(t, s.Buffered())
	}
}

func TestSplitter_ExtractsEveryCompleteFrameInOneWrite(t *testing.T) {
	s := NewSplitter(0)
	wire := framing.Encode([]byte("one"), []byte("two"), []byte("three"))

	_, err := s.Write(Bytes(append(wire, 0, 0)))
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two", "three"}, payloadStrings(s.Read(-1).Blocks))
	assert.Equal(t, 2, s.Buffered(), "partial header stays buffered")
}

func TestSplitter_ReadLimit(t *testing.T) {
	s := NewSplitter(0)
	_, err := s.Write(Bytes(framing.Encode([]byte("a"), []byte("b"), []byte("c"))))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, payloadStrings(s.Read(2).Blocks))
	assert.Equal(t, []string{"c"}, payloadStrings(s.Read(2).Blocks))
	assert.True(t, s.Read(-1).Empty())
}

func TestSplitter_BufferBound(t *testing.T) {
	s := NewSplitter(16)

	// header declares 100 bytes; only part of it arrives
	_, err := s.Write(Bytes([]byte{0, 0, 0, 100, 1, 2, 3, 4, 5, 6}))
	require.NoError(t, err)

	_, err = s.Write(Bytes(make([]byte, 7)))
	require.ErrorIs(t, err, domain.ErrFramingViolation)
	assert.Equal(t, 10, s.Buffered(), "rejected write must not be partially applied")
}

func TestSplitter_RejectsBlocks(t *testing.T) {
	_, err := NewSplitter(0).Write(Blocks(blocksOf("x")))
	require.ErrorIs(t, err, domain.ErrStageMismatch)
}

func TestJoiner_BufferBound(t *testing.T) {
	j := NewJoiner(10)

	_, err := j.Write(Blocks(blocksOf("abc")))
	require.NoError(t, err)

	_, err = j.Write(Blocks(blocksOf("abcd")))
	require.ErrorIs(t, err, domain.ErrFramingViolation)

	assert.Equal(t, framing.Encode([]byte("abc")), j.Read(-1).Bytes)
}

func TestJoiner_ReadLimit(t *testing.T) {
	j := NewJoiner(0)
	_, err := j.Write(Blocks(blocksOf("hello")))
	require.NoError(t, err)

	first := j.Read(4)
	rest := j.Read(-1)
	assert.Equal(t, framing.Encode([]byte("hello")), append(first.Bytes, rest.Bytes...))
}

func TestPassthrough(t *testing.T) {
	p := NewPassthrough()
	n, err := p.Write(Bytes([]byte("raw")))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, p.Tick())
	assert.Equal(t, []byte("raw"), p.Read(-1).Bytes)
	assert.True(t, p.Read(-1).Empty())
}
