package codec

import (
	"fmt"

	"github.com/klauspost/compress/s2"
)

// S2 compresses with the s2 block format (snappy-compatible family).
type S2 struct{}

// Name returns "s2".
func (S2) Name() string { return "s2" }

// Compress encodes src as a single s2 block.
func (S2) Compress(src []byte) []byte {
	return s2.Encode(nil, src)
}

// Decompress decodes a single s2 block.
func (S2) Decompress(src []byte, originalSize int) ([]byte, error) {
	dst, err := s2.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("codec s2: %w", err)
	}
	if len(dst) != originalSize {
		return nil, fmt.Errorf("codec s2: decoded %d bytes, header declared %d", len(dst), originalSize)
	}
	return dst, nil
}
