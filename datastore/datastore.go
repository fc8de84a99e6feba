// Package datastore implements a growable slab allocator with
// generation-deferred reclamation.
//
// A Store owns a bounded set of typed buffers and hands out compact
// EntryRef handles. Freeing is never synchronous: superseded slabs and
// compacted buffers move onto hold lists tagged with the generation of the
// mutation that retired them, and are physically released only once the
// reader watermark has passed that generation.
package datastore

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/attrstore/core"
)

// Store is a buffer allocator for fixed-shape elements of type E.
//
// All mutation is single-writer; Get is safe to call concurrently with the
// writer as long as the caller holds a generation guard covering the ref.
type Store[E any] struct {
	logger     *slog.Logger
	maxBuffers int
	elemSize   uint64

	types  []*bufferType
	active []uint32

	buffers []atomic.Pointer[buffer[E]]

	// Buffers retired by compaction, not yet generation-tagged.
	pendingHold []uint32
	// Buffers tagged and awaiting a watermark past their generation.
	holdBuffers []uint32

	// Slabs superseded by in-place growth. Refs keep pointing at the same
	// buffer id, but a reader may still be dereferencing the old backing
	// array, so it follows the same hold protocol.
	pendingSlabs [][]E
	heldSlabs    []heldSlab[E]
}

type heldSlab[E any] struct {
	data []E
	gen  core.Generation
}

// Option configures a Store.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	maxBuffers int
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMaxBuffers bounds the number of buffer slots. Compaction needs one
// free slot as its destination, so the effective minimum is 2.
func WithMaxBuffers(n int) Option {
	return func(c *config) { c.maxBuffers = n }
}

// New creates an empty Store. Register buffer types with AddType, then call
// InitActiveBuffers before the first Allocate.
func New[E any](opts ...Option) *Store[E] {
	cfg := config{maxBuffers: 8}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.maxBuffers < 2 {
		cfg.maxBuffers = 2
	}
	if cfg.maxBuffers > core.NumBuffers {
		cfg.maxBuffers = core.NumBuffers
	}

	var zero E
	return &Store[E]{
		logger:     cfg.logger,
		maxBuffers: cfg.maxBuffers,
		elemSize:   uint64(unsafe.Sizeof(zero)),
		buffers:    make([]atomic.Pointer[buffer[E]], cfg.maxBuffers),
	}
}

// AddType registers a buffer type and returns its type id.
func (s *Store[E]) AddType(p Policy) uint32 {
	typeID := uint32(len(s.types))
	s.types = append(s.types, &bufferType{Policy: p.normalize()})
	s.active = append(s.active, 0)
	return typeID
}

// InitActiveBuffers allocates the initial active buffer for every
// registered type.
func (s *Store[E]) InitActiveBuffers() {
	for typeID := range s.types {
		s.onActive(uint32(typeID))
	}
}

// typeUsedElems sums the used elements across every live buffer of typeID.
// During a compaction rotation the superseded buffer still counts, which is
// what sizes the new target to the type's full footprint minus the
// accounted dead.
func (s *Store[E]) typeUsedElems(typeID uint32) int {
	used := 0
	for id := range s.buffers {
		buf := s.buffers[id].Load()
		if buf == nil || buf.state() == BufferFree || buf.typeID != typeID {
			continue
		}
		used += buf.used()
	}
	return used
}

// onActive allocates a fresh buffer in a free slot and makes it the
// allocation target for typeID.
func (s *Store[E]) onActive(typeID uint32) uint32 {
	id, ok := s.freeBufferID()
	if !ok {
		panic("datastore: no free buffer slot")
	}
	t := s.types[typeID]
	elems := t.elemsToAlloc(id, 0, s.typeUsedElems(typeID))
	buf := newBuffer(BufferActive, typeID, make([]E, elems))
	buf.usedElems.Store(int64(t.reservedElems(id)))
	s.buffers[id].Store(buf)
	s.active[typeID] = id
	return id
}

func (s *Store[E]) freeBufferID() (uint32, bool) {
	for id := range s.buffers {
		buf := s.buffers[id].Load()
		if buf == nil || buf.state() == BufferFree {
			return uint32(id), true
		}
	}
	return 0, false
}

// HasFreeBuffer reports whether a free slot exists for a compaction target.
func (s *Store[E]) HasFreeBuffer() bool {
	_, ok := s.freeBufferID()
	return ok
}

// ActiveBufferID returns the allocation target of typeID.
func (s *Store[E]) ActiveBufferID(typeID uint32) uint32 { return s.active[typeID] }

// Allocate reserves one element in the active buffer of typeID, growing it
// in place when it lacks capacity, and returns the element's handle.
//
// Growth is unconditional; the only failure mode is the fatal configuration
// error raised when even linear-fallback sizing exceeds the type's MaxElems.
func (s *Store[E]) Allocate(typeID uint32) core.EntryRef {
	id := s.active[typeID]
	buf := s.buffers[id].Load()
	used := buf.used()
	if used+1 > len(buf.data) {
		s.growActive(typeID, 1)
		buf = s.buffers[id].Load()
		used = buf.used()
	}
	buf.usedElems.Store(int64(used + 1))
	return core.MakeRef(id, uint32(used))
}

// growActive replaces the active buffer's slab with a larger one. The old
// slab joins the pending hold list because concurrent readers may still be
// mid-dereference into it.
func (s *Store[E]) growActive(typeID uint32, sizeNeeded int) {
	id := s.active[typeID]
	old := s.buffers[id].Load()
	t := s.types[typeID]
	used := old.used()

	elems := t.elemsToAlloc(id, sizeNeeded, s.typeUsedElems(typeID))
	// In-place growth keeps every used element: dead slots are addressed by
	// live refs and can only be reclaimed by relocation, never by resizing.
	if minSize := used + sizeNeeded; elems < minSize {
		elems = alignUp(minSize, t.AllocUnit)
		if elems > t.MaxElems {
			if minSize > t.MaxElems {
				panic(fmt.Sprintf("datastore: minimum new size (%d) exceeds max size (%d)", minSize, t.MaxElems))
			}
			elems = t.MaxElems
		}
	}

	data := make([]E, elems)
	copy(data, old.data[:used])

	buf := newBuffer(BufferActive, typeID, data)
	buf.usedElems.Store(int64(used))
	buf.deadElems.Store(old.deadElems.Load())
	s.buffers[id].Store(buf)
	s.pendingSlabs = append(s.pendingSlabs, old.data)

	s.logger.Debug("buffer grown",
		"type", typeID,
		"buffer", id,
		"elems", elems,
	)
}

// Get dereferences ref in O(1). The ref must be known valid: no generation
// tagging exists at this layer, so a stale ref is a caller contract
// violation.
func (s *Store[E]) Get(ref core.EntryRef) *E {
	buf := s.buffers[ref.BufferID()].Load()
	if buf == nil || buf.state() == BufferFree {
		panic(fmt.Sprintf("datastore: dereference of freed %s", ref))
	}
	return &buf.data[ref.Offset()]
}

// FreeElement marks the element dead without erasing it. Physical
// reclamation happens through compaction and the hold-list pipeline.
func (s *Store[E]) FreeElement(ref core.EntryRef) {
	buf := s.buffers[ref.BufferID()].Load()
	buf.deadElems.Add(1)
}

// SetSizeNeededAndDead declares the size budget and dead count the next
// buffer allocation of typeID should be computed from.
func (s *Store[E]) SetSizeNeededAndDead(typeID uint32, sizeNeeded, dead int) {
	s.types[typeID].setSizeNeededAndDead(sizeNeeded, dead)
}

// WantCompact reports whether a fallback resize flagged typeID for
// compaction at the next opportunity.
func (s *Store[E]) WantCompact(typeID uint32) bool { return s.types[typeID].wantCompact }

// StartCompact rotates typeID to a fresh active buffer and returns the
// superseded buffer ids. The caller must relocate every live entry out of
// them and then pass the same ids to FinishCompact.
//
// A free buffer slot must exist; check HasFreeBuffer first.
func (s *Store[E]) StartCompact(typeID uint32) []uint32 {
	oldID := s.active[typeID]
	old := s.buffers[oldID].Load()
	toHold := []uint32{oldID}

	// The old buffer stays readable for the duration of the walk, but it is
	// no longer the allocation target.
	old.kind.Store(uint32(BufferHold))

	s.onActive(typeID)
	s.types[typeID].wantCompact = false

	s.logger.Debug("compaction started",
		"type", typeID,
		"source", oldID,
		"target", s.active[typeID],
	)
	return toHold
}

// FinishCompact accounts the source buffers as fully dead and queues them
// for generation tagging. Their memory is not freed here. The declared
// sizing budget of each source's type is consumed by the compaction, so it
// resets to zero.
func (s *Store[E]) FinishCompact(toHold []uint32) {
	for _, id := range toHold {
		buf := s.buffers[id].Load()
		buf.deadElems.Store(buf.usedElems.Load())
		s.pendingHold = append(s.pendingHold, id)
		s.types[buf.typeID].setSizeNeededAndDead(0, 0)
	}
}

// FallbackResize grows the active buffer of typeID in place instead of
// rotating to a new buffer, and flags the type as wanting compaction. Used
// when growth must succeed before the compaction machinery is primed.
func (s *Store[E]) FallbackResize(typeID uint32, sizeNeeded int) {
	s.growActive(typeID, sizeNeeded)
	s.types[typeID].wantCompact = true
}

// TransferHoldLists stamps every pending buffer and slab with the given
// generation, making them eligible for TrimHoldLists once all readers have
// advanced past it.
func (s *Store[E]) TransferHoldLists(gen core.Generation) {
	for _, id := range s.pendingHold {
		s.buffers[id].Load().holdGen.Store(uint64(gen))
		s.holdBuffers = append(s.holdBuffers, id)
	}
	s.pendingHold = s.pendingHold[:0]

	for _, data := range s.pendingSlabs {
		s.heldSlabs = append(s.heldSlabs, heldSlab[E]{data: data, gen: gen})
	}
	s.pendingSlabs = s.pendingSlabs[:0]
}

// TrimHoldLists physically frees every held buffer and slab whose tagged
// generation is strictly below firstUsed. This is the only place memory is
// actually released.
//
// firstUsed must be the watermark supplied by the generation handler, never
// a caller-chosen generation.
func (s *Store[E]) TrimHoldLists(firstUsed core.Generation) {
	kept := s.holdBuffers[:0]
	for _, id := range s.holdBuffers {
		buf := s.buffers[id].Load()
		if gen := buf.generation(); gen < firstUsed {
			s.buffers[id].Store(newBuffer[E](BufferFree, 0, nil))
			s.logger.Debug("buffer freed", "buffer", id, "generation", gen)
		} else {
			kept = append(kept, id)
		}
	}
	s.holdBuffers = kept

	keptSlabs := s.heldSlabs[:0]
	for _, slab := range s.heldSlabs {
		if slab.gen >= firstUsed {
			keptSlabs = append(keptSlabs, slab)
		}
	}
	s.heldSlabs = keptSlabs
}

// Reset drops every buffer and hold list and re-initializes the active
// buffers sized to sizeNeeded. Only legal while no readers are registered;
// deserialization uses it to avoid incremental reallocation during load.
func (s *Store[E]) Reset(sizeNeeded int) {
	for id := range s.buffers {
		s.buffers[id].Store(nil)
	}
	s.pendingHold = nil
	s.holdBuffers = nil
	s.pendingSlabs = nil
	s.heldSlabs = nil
	for _, t := range s.types {
		t.setSizeNeededAndDead(sizeNeeded, 0)
		t.wantCompact = false
	}
	s.InitActiveBuffers()
}

// BufferInfo returns a snapshot of the buffer slot, for introspection and
// tests.
func (s *Store[E]) BufferInfo(id uint32) BufferInfo {
	buf := s.buffers[id].Load()
	if buf == nil {
		return BufferInfo{Kind: BufferFree}
	}
	return BufferInfo{
		Kind:      buf.state(),
		TypeID:    buf.typeID,
		Capacity:  len(buf.data),
		UsedElems: buf.used(),
		DeadElems: buf.dead(),
		HoldGen:   buf.generation(),
	}
}

// MemoryUsage reports the physical memory state across all buffers.
func (s *Store[E]) MemoryUsage() core.MemoryUsage {
	var u core.MemoryUsage
	for id := range s.buffers {
		buf := s.buffers[id].Load()
		if buf == nil || buf.state() == BufferFree {
			continue
		}
		bytes := uint64(len(buf.data)) * s.elemSize
		u.AllocatedBytes += bytes
		u.UsedBytes += uint64(buf.used()) * s.elemSize
		u.DeadBytes += uint64(buf.dead()) * s.elemSize
		if buf.state() == BufferHold {
			u.OnHoldBytes += bytes
		}
	}
	for _, data := range s.pendingSlabs {
		bytes := uint64(len(data)) * s.elemSize
		u.AllocatedBytes += bytes
		u.OnHoldBytes += bytes
	}
	for _, slab := range s.heldSlabs {
		bytes := uint64(len(slab.data)) * s.elemSize
		u.AllocatedBytes += bytes
		u.OnHoldBytes += bytes
	}
	return u
}

// AddressSpaceUsage reports how much of the active buffer's address range
// of typeID is consumed.
func (s *Store[E]) AddressSpaceUsage(typeID uint32) core.AddressSpaceUsage {
	buf := s.buffers[s.active[typeID]].Load()
	return core.AddressSpaceUsage{
		Used:  uint64(buf.used()),
		Dead:  uint64(buf.dead()),
		Limit: core.OffsetSize,
	}
}
