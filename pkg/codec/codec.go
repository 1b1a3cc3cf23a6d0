// Package codec provides payload transforms for use with pipeline.NewTransform.
package codec

import (
	"fmt"

	"github.com/golang/snappy"
)

// SnappyEncode compresses one payload with the snappy block format.
func SnappyEncode(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

// SnappyDecode reverses SnappyEncode.
func SnappyDecode(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	return out, nil
}

// Identity returns data unchanged.
func Identity(data []byte) ([]byte, error) {
	return data, nil
}
