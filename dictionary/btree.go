package dictionary

import (
	"sync/atomic"

	"github.com/google/btree"

	"github.com/hupe1980/attrstore/core"
)

// btreeDegree matches the node fanout used across the codebase for ordered
// in-memory indexes.
const btreeDegree = 32

// cowTree wraps a B-tree with copy-on-write snapshot publishing. The writer
// mutates write and republishes a clone after every mutation; readers only
// touch the last published snapshot through an atomic pointer. Superseded
// snapshots keep pre-mutation nodes alive for in-flight readers and are
// dropped through the generation hold-list protocol.
type cowTree[I any] struct {
	write   *btree.BTreeG[I]
	read    atomic.Pointer[btree.BTreeG[I]]
	pending []*btree.BTreeG[I]
	held    []heldTree[I]
}

type heldTree[I any] struct {
	tree *btree.BTreeG[I]
	gen  core.Generation
}

func newCowTree[I any](less btree.LessFunc[I]) *cowTree[I] {
	c := &cowTree[I]{write: btree.NewG(btreeDegree, less)}
	c.read.Store(c.write.Clone())
	return c
}

// publish makes the writer's view visible to readers. The previously
// published snapshot joins the pending hold list.
func (c *cowTree[I]) publish() {
	prev := c.read.Swap(c.write.Clone())
	c.pending = append(c.pending, prev)
}

func (c *cowTree[I]) snapshot() *btree.BTreeG[I] { return c.read.Load() }

func (c *cowTree[I]) transferHoldLists(gen core.Generation) {
	for _, t := range c.pending {
		c.held = append(c.held, heldTree[I]{tree: t, gen: gen})
	}
	c.pending = c.pending[:0]
}

func (c *cowTree[I]) trimHoldLists(firstUsed core.Generation) {
	kept := c.held[:0]
	for _, h := range c.held {
		if h.gen >= firstUsed {
			kept = append(kept, h)
		}
	}
	c.held = kept
}

// BTree is the plain ordered dictionary variant.
type BTree[T any] struct {
	cmp Compare[T]
	cow *cowTree[Entry[T]]
}

var _ Dictionary[string] = (*BTree[string])(nil)

// NewBTree creates a plain ordered dictionary using cmp for value order.
func NewBTree[T any](cmp Compare[T]) *BTree[T] {
	return &BTree[T]{
		cmp: cmp,
		cow: newCowTree(func(a, b Entry[T]) bool {
			return cmp(a.Value, b.Value) < 0
		}),
	}
}

// Find returns the ref stored for value, from the writer's view.
func (d *BTree[T]) Find(value T) (core.EntryRef, bool) {
	e, ok := d.cow.write.Get(Entry[T]{Value: value})
	if !ok {
		return core.NilRef, false
	}
	return e.Ref, true
}

// Insert adds or replaces the entry for value.
func (d *BTree[T]) Insert(value T, ref core.EntryRef) {
	d.cow.write.ReplaceOrInsert(Entry[T]{Value: value, Ref: ref})
	d.cow.publish()
}

// Remove deletes the entry for value.
func (d *BTree[T]) Remove(value T) bool {
	_, ok := d.cow.write.Delete(Entry[T]{Value: value})
	if ok {
		d.cow.publish()
	}
	return ok
}

// UpdateRef rewrites the ref of an existing entry.
func (d *BTree[T]) UpdateRef(value T, ref core.EntryRef) bool {
	if _, ok := d.cow.write.Get(Entry[T]{Value: value}); !ok {
		return false
	}
	d.cow.write.ReplaceOrInsert(Entry[T]{Value: value, Ref: ref})
	d.cow.publish()
	return true
}

// Ascend yields snapshot entries in value order.
func (d *BTree[T]) Ascend(fn func(Entry[T]) bool) {
	d.cow.snapshot().Ascend(btree.ItemIteratorG[Entry[T]](fn))
}

// AscendRange yields snapshot entries in [from, to) in value order.
func (d *BTree[T]) AscendRange(from, to T, fn func(Entry[T]) bool) {
	d.cow.snapshot().AscendRange(Entry[T]{Value: from}, Entry[T]{Value: to}, btree.ItemIteratorG[Entry[T]](fn))
}

// AscendMutable yields entries from the writer's own view.
func (d *BTree[T]) AscendMutable(fn func(Entry[T]) bool) {
	d.cow.write.Ascend(btree.ItemIteratorG[Entry[T]](fn))
}

// Len returns the number of entries.
func (d *BTree[T]) Len() int { return d.cow.write.Len() }

// Clear drops every entry.
func (d *BTree[T]) Clear() {
	d.cow.write.Clear(false)
	d.cow.publish()
}

// TransferHoldLists stamps superseded snapshots with gen.
func (d *BTree[T]) TransferHoldLists(gen core.Generation) { d.cow.transferHoldLists(gen) }

// TrimHoldLists releases snapshots stamped strictly below firstUsed.
func (d *BTree[T]) TrimHoldLists(firstUsed core.Generation) { d.cow.trimHoldLists(firstUsed) }
