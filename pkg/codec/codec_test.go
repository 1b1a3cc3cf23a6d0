package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnappyRoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		[]byte("a"),
		bytes.Repeat([]byte("frame "), 1000),
	}
	for _, in := range inputs {
		enc, err := SnappyEncode(in)
		require.NoError(t, err)
		dec, err := SnappyDecode(enc)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(in, dec))
	}
}

func TestSnappyEncodeCompresses(t *testing.T) {
	in := bytes.Repeat([]byte{0xAB}, 4096)
	enc, err := SnappyEncode(in)
	require.NoError(t, err)
	assert.Less(t, len(enc), len(in))
}

func TestSnappyDecodeCorrupt(t *testing.T) {
	_, err := SnappyDecode([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snappy decode")
}
