// Package dictionary provides the ordered value index of the unique store.
//
// A Dictionary maps stored values to their EntryRef handles and supports
// point lookup, ordered iteration and range queries. Two variants exist: a
// plain ordered index and one carrying a posting set per entry. Both follow
// the generation hold-list protocol for their internal nodes: mutations
// publish copy-on-write snapshots, readers iterate the last published
// snapshot, and superseded snapshots are released only once the reader
// watermark has passed their generation.
package dictionary

import "github.com/hupe1980/attrstore/core"

// Compare is a three-way comparator over stored values. Ties between two
// entries are resolved on the dereferenced values, never on the refs: two
// refs for the same value momentarily coexist during relocation.
type Compare[T any] func(a, b T) int

// Entry is one (value, ref) pair of the index.
type Entry[T any] struct {
	Value T
	Ref   core.EntryRef
}

// Dictionary is the capability set shared by all variants. Callers select
// the variant at construction based on whether range queries or postings
// are required.
//
// Mutation is single-writer; Ascend and AscendRange are safe for concurrent
// readers holding a generation guard.
type Dictionary[T any] interface {
	// Find returns the ref stored for value.
	Find(value T) (core.EntryRef, bool)

	// Insert adds or replaces the entry for value.
	Insert(value T, ref core.EntryRef)

	// Remove deletes the entry for value and reports whether it existed.
	Remove(value T) bool

	// UpdateRef rewrites the ref of an existing entry, preserving any
	// per-entry payload. Used by compaction relocation.
	UpdateRef(value T, ref core.EntryRef) bool

	// Ascend yields entries in value order from the last published
	// snapshot until fn returns false.
	Ascend(fn func(Entry[T]) bool)

	// AscendRange yields snapshot entries in [from, to) in value order.
	AscendRange(from, to T, fn func(Entry[T]) bool)

	// AscendMutable yields entries from the writer's own view, observing
	// unpublished mutations. Writer-only.
	AscendMutable(fn func(Entry[T]) bool)

	// Len returns the number of entries in the writer's view.
	Len() int

	// Clear drops every entry. Only legal while no readers are
	// registered; deserialization uses it when resetting a store.
	Clear()

	// TransferHoldLists stamps superseded snapshots with gen.
	TransferHoldLists(gen core.Generation)

	// TrimHoldLists releases snapshots stamped strictly below firstUsed.
	TrimHoldLists(firstUsed core.Generation)
}
