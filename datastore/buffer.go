package datastore

import (
	"sync/atomic"

	"github.com/hupe1980/attrstore/core"
)

// BufferKind is the lifecycle state of a buffer slot.
//
// The state machine is FREE -> ACTIVE -> HOLD -> FREE. Only one buffer per
// type is ACTIVE (the allocation target) at a time; HOLD buffers stay
// readable until trimmed.
type BufferKind uint8

const (
	// BufferFree marks a reusable slot with no backing memory.
	BufferFree BufferKind = iota
	// BufferActive marks the allocation target of its type.
	BufferActive
	// BufferHold marks a buffer superseded by compaction, awaiting
	// generation-safe free.
	BufferHold
)

func (k BufferKind) String() string {
	switch k {
	case BufferFree:
		return "FREE"
	case BufferActive:
		return "ACTIVE"
	case BufferHold:
		return "HOLD"
	default:
		return "UNKNOWN"
	}
}

// buffer is one slab slot. The slab itself is immutable per struct: the
// writer publishes a replacement struct through an atomic pointer on grow,
// so lock-free readers always observe a consistent (data, len) pair. The
// scalar state a reader may inspect concurrently with the writer (kind,
// element counts, hold generation) is atomic.
type buffer[E any] struct {
	typeID uint32
	data   []E

	kind      atomic.Uint32
	usedElems atomic.Int64
	deadElems atomic.Int64
	holdGen   atomic.Uint64
}

func newBuffer[E any](kind BufferKind, typeID uint32, data []E) *buffer[E] {
	b := &buffer[E]{typeID: typeID, data: data}
	b.kind.Store(uint32(kind))
	return b
}

func (b *buffer[E]) state() BufferKind { return BufferKind(b.kind.Load()) }

func (b *buffer[E]) used() int { return int(b.usedElems.Load()) }

func (b *buffer[E]) dead() int { return int(b.deadElems.Load()) }

func (b *buffer[E]) generation() core.Generation {
	return core.Generation(b.holdGen.Load())
}

// BufferInfo is a read-only snapshot of a buffer slot, exposed for
// introspection and tests.
type BufferInfo struct {
	Kind      BufferKind
	TypeID    uint32
	Capacity  int
	UsedElems int
	DeadElems int
	HoldGen   core.Generation
}
