package pipeline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/ebridge/internal/domain"
)

func TestPipeline_AppendChecksKinds(t *testing.T) {
	p := New(Inbound)
	require.NoError(t, p.Append(NewSplitter(0)))

	err := p.Append(NewPassthrough())
	require.ErrorIs(t, err, domain.ErrStageMismatch)
	assert.Equal(t, 1, p.Len())

	require.NoError(t, p.Append(NewTransform("id", func(b []byte) ([]byte, error) { return b, nil }, nil)))
	assert.Equal(t, KindBytes, p.InputKind())
	assert.Equal(t, KindBlocks, p.OutputKind())
	assert.Equal(t, "frame-splitter -> transform:id", p.String())
}

func TestPipeline_MustAppendPanics(t *testing.T) {
	assert.Panics(t, func() {
		New(Outbound).MustAppend(NewJoiner(0), NewJoiner(0))
	})
}

func TestPipeline_WriteWithoutStages(t *testing.T) {
	_, err := New(Inbound).Write(Bytes([]byte("x")))
	require.ErrorIs(t, err, domain.ErrStageMismatch)
	assert.True(t, New(Inbound).Read(-1).Empty())
}

func TestPipeline_CodecRoundTrip(t *testing.T) {
	enc := func(b []byte) ([]byte, error) { return append([]byte("<"), append(b, '>')...), nil }
	dec := func(b []byte) ([]byte, error) { return bytes.Trim(b, "<>"), nil }

	out := New(Outbound).MustAppend(NewTransform("enc", enc, nil), NewJoiner(0))
	in := New(Inbound).MustAppend(NewSplitter(0), NewTransform("dec", dec, nil))

	_, err := out.Write(Blocks(blocksOf("a", "bb", "")))
	require.NoError(t, err)

	var wire []byte
	for i := 0; i < 3; i++ {
		_, err := out.Pump()
		require.NoError(t, err)
		wire = append(wire, out.Read(-1).Bytes...)
	}

	_, err = in.Write(Bytes(wire))
	require.NoError(t, err)

	var got []domain.Block
	for i := 0; i < 3; i++ {
		_, err := in.Pump()
		require.NoError(t, err)
		got = append(got, in.Read(-1).Blocks...)
	}
	assert.Equal(t, []string{"a", "bb", ""}, payloadStrings(got))
}

func TestPipeline_PumpReportsMovement(t *testing.T) {
	p := New(Inbound).MustAppend(NewPassthrough(), NewSplitter(0))

	moved, err := p.Pump()
	require.NoError(t, err)
	assert.False(t, moved)

	_, err = p.Write(Bytes([]byte{0, 0, 0, 1, 'z'}))
	require.NoError(t, err)
	moved, err = p.Pump()
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"z"}, payloadStrings(p.Read(-1).Blocks))
}

func TestPipeline_PumpPropagatesStageError(t *testing.T) {
	p := New(Inbound).MustAppend(NewPassthrough(), NewSplitter(8))
	_, err := p.Write(Bytes(make([]byte, 64)))
	require.NoError(t, err)

	_, err = p.Pump()
	require.ErrorIs(t, err, domain.ErrFramingViolation)
	assert.Contains(t, err.Error(), "inbound pipeline stage frame-splitter")
}

func TestPipeline_CloseDropsBuffers(t *testing.T) {
	s := NewSplitter(0)
	p := New(Inbound).MustAppend(s)
	_, err := p.Write(Bytes([]byte{0, 0, 0, 9, 1}))
	require.NoError(t, err)

	p.Close()
	assert.Zero(t, s.Buffered())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "frame-joiner: blocks => bytes", Describe(NewJoiner(0)))
}
