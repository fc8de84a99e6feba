// Package codec centralizes compression of persisted value streams.
//
// Codec selection is a compatibility boundary: the serialized header stores
// the codec name, and bytes written with one codec never decode under
// another.
package codec

// Codec compresses and decompresses byte blocks.
// Implementations must be safe for concurrent use.
type Codec interface {
	Name() string
	Compress(src []byte) []byte
	Decompress(src []byte, originalSize int) ([]byte, error)
}

// Default is the codec used when none is configured.
var Default Codec = None{}

// ByName returns a built-in codec by its stable name.
//
// Used by self-describing persistence formats that store the codec name in
// their header.
func ByName(name string) (Codec, bool) {
	switch name {
	case "none":
		return None{}, true
	case "s2":
		return S2{}, true
	case "lz4":
		return LZ4{}, true
	default:
		return nil, false
	}
}

// None is the identity codec.
type None struct{}

// Name returns "none".
func (None) Name() string { return "none" }

// Compress returns src unchanged.
func (None) Compress(src []byte) []byte { return src }

// Decompress returns src unchanged.
func (None) Decompress(src []byte, _ int) ([]byte, error) { return src, nil }
