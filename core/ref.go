// Package core defines the dense identifier and accounting types shared by
// the attrstore storage layers.
package core

import "fmt"

const (
	// OffsetBits is the number of low bits of an EntryRef that encode the
	// intra-buffer offset.
	OffsetBits = 22
	// BufferBits is the number of high bits of an EntryRef that encode the
	// buffer id.
	BufferBits = 32 - OffsetBits

	// NumBuffers is the maximum number of addressable buffers.
	NumBuffers = 1 << BufferBits
	// OffsetSize is the maximum number of addressable elements per buffer.
	OffsetSize = 1 << OffsetBits

	offsetMask = OffsetSize - 1
)

// EntryRef is a dense, relocation-stable handle for a stored entry. It packs
// a buffer id and an intra-buffer offset into a single 32-bit word and is the
// sole external name for an entry.
//
// The zero value is NilRef. Buffer 0 reserves its first element so that no
// valid entry ever encodes to 0.
type EntryRef uint32

// NilRef is the reserved invalid reference.
const NilRef EntryRef = 0

// MakeRef packs a buffer id and offset into an EntryRef.
func MakeRef(bufferID, offset uint32) EntryRef {
	return EntryRef(bufferID<<OffsetBits | offset&offsetMask)
}

// BufferID returns the buffer id part of the reference.
func (r EntryRef) BufferID() uint32 { return uint32(r) >> OffsetBits }

// Offset returns the intra-buffer offset part of the reference.
func (r EntryRef) Offset() uint32 { return uint32(r) & offsetMask }

// Valid reports whether the reference names an entry.
func (r EntryRef) Valid() bool { return r != NilRef }

func (r EntryRef) String() string {
	return fmt.Sprintf("EntryRef{buffer: %d, offset: %d}", r.BufferID(), r.Offset())
}

// Generation is a process-wide monotonically increasing epoch counter. Every
// mutation that can invalidate previously returned data is tagged with the
// generation at which it occurred.
type Generation uint64
