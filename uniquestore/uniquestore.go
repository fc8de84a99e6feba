// Package uniquestore implements a deduplicating, refcounted value store.
//
// Values are stored once in a datastore buffer and addressed by EntryRef;
// an ordered dictionary maps each distinct value to its ref. Removal only
// decrements refcounts and marks storage dead; physical reclamation runs
// through the compaction and hold-list protocol.
package uniquestore

import (
	"io"
	"log/slog"

	"github.com/hupe1980/attrstore/core"
	"github.com/hupe1980/attrstore/datastore"
	"github.com/hupe1980/attrstore/dictionary"
)

// entry is the stored unit: the value plus the count of logical holders.
type entry[T any] struct {
	value    T
	refCount uint32
}

// Store deduplicates values of type T behind compact EntryRef handles.
//
// All mutation is single-writer. Get and dictionary iteration are safe for
// concurrent readers holding a generation guard.
type Store[T any] struct {
	logger *slog.Logger
	cmp    dictionary.Compare[T]

	data   *datastore.Store[entry[T]]
	typeID uint32
	dict   dictionary.Dictionary[T]

	// Compaction sources between PreCompact and PostCompact.
	toHold []uint32
}

// Option configures a Store.
type Option[T any] func(*config[T])

type config[T any] struct {
	logger     *slog.Logger
	policy     datastore.Policy
	maxBuffers int
	dict       dictionary.Dictionary[T]
}

// WithLogger sets the structured logger.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(c *config[T]) { c.logger = l }
}

// WithPolicy sets the buffer sizing policy.
func WithPolicy[T any](p datastore.Policy) Option[T] {
	return func(c *config[T]) { c.policy = p }
}

// WithMaxBuffers bounds the number of buffer slots.
func WithMaxBuffers[T any](n int) Option[T] {
	return func(c *config[T]) { c.maxBuffers = n }
}

// WithDictionary selects the dictionary variant. Defaults to the plain
// ordered B-tree.
func WithDictionary[T any](d dictionary.Dictionary[T]) Option[T] {
	return func(c *config[T]) { c.dict = d }
}

// New creates an empty Store ordered by cmp.
func New[T any](cmp dictionary.Compare[T], opts ...Option[T]) *Store[T] {
	cfg := config[T]{
		policy:     datastore.DefaultPolicy(),
		maxBuffers: 8,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.dict == nil {
		cfg.dict = dictionary.NewBTree(cmp)
	}

	data := datastore.New[entry[T]](
		datastore.WithLogger(cfg.logger),
		datastore.WithMaxBuffers(cfg.maxBuffers),
	)
	typeID := data.AddType(cfg.policy)
	data.InitActiveBuffers()

	return &Store[T]{
		logger: cfg.logger,
		cmp:    cmp,
		data:   data,
		typeID: typeID,
		dict:   cfg.dict,
	}
}

// Add stores value if not yet present and returns its ref, plus whether the
// value was newly created. Adding an existing value increments its
// refcount and returns the existing ref.
func (s *Store[T]) Add(value T) (core.EntryRef, bool) {
	if ref, ok := s.dict.Find(value); ok {
		s.data.Get(ref).refCount++
		return ref, false
	}

	ref := s.data.Allocate(s.typeID)
	*s.data.Get(ref) = entry[T]{value: value, refCount: 1}
	s.dict.Insert(value, ref)
	return ref, true
}

// Find returns the ref of value without touching its refcount.
func (s *Store[T]) Find(value T) (core.EntryRef, bool) {
	return s.dict.Find(value)
}

// Get dereferences ref in O(1). The ref must have been returned by Add and
// not invalidated by an unremapped compaction; there is no validity tagging
// on this path.
func (s *Store[T]) Get(ref core.EntryRef) T {
	return s.data.Get(ref).value
}

// Holds reports whether ref currently points into allocated storage. A
// false result means the ref is nil, was never handed out, or outlived the
// buffer it pointed into.
func (s *Store[T]) Holds(ref core.EntryRef) bool {
	if !ref.Valid() {
		return false
	}
	info := s.data.BufferInfo(ref.BufferID())
	return info.Kind != datastore.BufferFree && int(ref.Offset()) < info.UsedElems
}

// RefCount returns the current refcount of ref.
func (s *Store[T]) RefCount(ref core.EntryRef) uint32 {
	return s.data.Get(ref).refCount
}

// Remove decrements the refcount of ref. At zero the entry leaves the
// dictionary and its element is marked dead; memory is reclaimed only
// through a later compact + transfer + trim cycle. Removing an already dead
// entry is a logged no-op.
func (s *Store[T]) Remove(ref core.EntryRef) {
	e := s.data.Get(ref)
	if e.refCount == 0 {
		s.logger.Warn("remove of dead entry ignored", "ref", ref.String())
		return
	}
	e.refCount--
	if e.refCount == 0 {
		s.dict.Remove(e.value)
		s.data.FreeElement(ref)
	}
}

// NumUniques returns the number of distinct live values.
func (s *Store[T]) NumUniques() int { return s.dict.Len() }

// Dictionary exposes the ordered index for lookups, iteration and range
// queries.
func (s *Store[T]) Dictionary() dictionary.Dictionary[T] { return s.dict }

// MemoryUsage reports the physical memory state of the store.
func (s *Store[T]) MemoryUsage() core.MemoryUsage { return s.data.MemoryUsage() }

// AddressSpaceUsage reports consumption of the active buffer's address
// range, for compaction planning.
func (s *Store[T]) AddressSpaceUsage() core.AddressSpaceUsage {
	return s.data.AddressSpaceUsage(s.typeID)
}

// TransferHoldLists stamps all superseded storage with gen.
func (s *Store[T]) TransferHoldLists(gen core.Generation) {
	s.dict.TransferHoldLists(gen)
	s.data.TransferHoldLists(gen)
}

// TrimHoldLists physically frees storage stamped strictly below firstUsed.
// firstUsed must come from the generation handler.
func (s *Store[T]) TrimHoldLists(firstUsed core.Generation) {
	s.dict.TrimHoldLists(firstUsed)
	s.data.TrimHoldLists(firstUsed)
}
