package codec

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// LZ4 compresses with the lz4 block format.
//
// Incompressible input is stored raw: the first byte of the output flags
// whether the remainder is an lz4 block (1) or verbatim data (0).
type LZ4 struct{}

const (
	lz4Raw   = 0
	lz4Block = 1
)

// Name returns "lz4".
func (LZ4) Name() string { return "lz4" }

// Compress encodes src as a flagged lz4 block.
func (LZ4) Compress(src []byte) []byte {
	var c lz4.Compressor
	dst := make([]byte, 1+lz4.CompressBlockBound(len(src)))
	n, err := c.CompressBlock(src, dst[1:])
	if err != nil || n == 0 || n >= len(src) {
		out := make([]byte, 1+len(src))
		out[0] = lz4Raw
		copy(out[1:], src)
		return out
	}
	dst[0] = lz4Block
	return dst[:1+n]
}

// Decompress decodes a flagged lz4 block.
func (LZ4) Decompress(src []byte, originalSize int) ([]byte, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("codec lz4: empty input")
	}
	switch src[0] {
	case lz4Raw:
		if len(src)-1 != originalSize {
			return nil, fmt.Errorf("codec lz4: raw block is %d bytes, header declared %d", len(src)-1, originalSize)
		}
		return src[1:], nil
	case lz4Block:
		dst := make([]byte, originalSize)
		n, err := lz4.UncompressBlock(src[1:], dst)
		if err != nil {
			return nil, fmt.Errorf("codec lz4: %w", err)
		}
		return dst[:n], nil
	default:
		return nil, fmt.Errorf("codec lz4: unknown block flag 0x%x", src[0])
	}
}
