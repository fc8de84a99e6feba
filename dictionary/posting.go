package dictionary

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/attrstore/core"
)

// postingEntry is a dictionary entry plus the posting set of document ids
// carrying its value.
type postingEntry[T any] struct {
	Entry[T]
	posting *roaring.Bitmap
}

// PostingTree is the dictionary variant for enum-style usage: every entry
// carries a roaring posting set alongside its ref. Compaction remaps refs
// without disturbing postings.
type PostingTree[T any] struct {
	cmp Compare[T]
	cow *cowTree[postingEntry[T]]
}

var _ Dictionary[string] = (*PostingTree[string])(nil)

// NewPostingTree creates a posting dictionary using cmp for value order.
func NewPostingTree[T any](cmp Compare[T]) *PostingTree[T] {
	return &PostingTree[T]{
		cmp: cmp,
		cow: newCowTree(func(a, b postingEntry[T]) bool {
			return cmp(a.Value, b.Value) < 0
		}),
	}
}

func (d *PostingTree[T]) key(value T) postingEntry[T] {
	return postingEntry[T]{Entry: Entry[T]{Value: value}}
}

// Find returns the ref stored for value, from the writer's view.
func (d *PostingTree[T]) Find(value T) (core.EntryRef, bool) {
	e, ok := d.cow.write.Get(d.key(value))
	if !ok {
		return core.NilRef, false
	}
	return e.Ref, true
}

// Insert adds or replaces the entry for value, starting with an empty
// posting set.
func (d *PostingTree[T]) Insert(value T, ref core.EntryRef) {
	d.cow.write.ReplaceOrInsert(postingEntry[T]{
		Entry:   Entry[T]{Value: value, Ref: ref},
		posting: roaring.New(),
	})
	d.cow.publish()
}

// Remove deletes the entry for value along with its posting set.
func (d *PostingTree[T]) Remove(value T) bool {
	_, ok := d.cow.write.Delete(d.key(value))
	if ok {
		d.cow.publish()
	}
	return ok
}

// UpdateRef rewrites the ref of an existing entry, keeping its posting set.
func (d *PostingTree[T]) UpdateRef(value T, ref core.EntryRef) bool {
	e, ok := d.cow.write.Get(d.key(value))
	if !ok {
		return false
	}
	e.Ref = ref
	d.cow.write.ReplaceOrInsert(e)
	d.cow.publish()
	return true
}

// AddPosting records docID in the posting set of value.
func (d *PostingTree[T]) AddPosting(value T, docID uint32) bool {
	e, ok := d.cow.write.Get(d.key(value))
	if !ok {
		return false
	}
	// Posting sets are mutated copy-on-write for the same reason tree
	// nodes are: a reader may be mid-iteration over the published set.
	p := e.posting.Clone()
	p.Add(docID)
	e.posting = p
	d.cow.write.ReplaceOrInsert(e)
	d.cow.publish()
	return true
}

// RemovePosting removes docID from the posting set of value.
func (d *PostingTree[T]) RemovePosting(value T, docID uint32) bool {
	e, ok := d.cow.write.Get(d.key(value))
	if !ok {
		return false
	}
	p := e.posting.Clone()
	p.Remove(docID)
	e.posting = p
	d.cow.write.ReplaceOrInsert(e)
	d.cow.publish()
	return true
}

// Postings iterates the posting set of value in ascending docID order,
// from the published snapshot.
func (d *PostingTree[T]) Postings(value T, fn func(docID uint32) bool) {
	e, ok := d.cow.snapshot().Get(d.key(value))
	if !ok || e.posting == nil {
		return
	}
	it := e.posting.Iterator()
	for it.HasNext() {
		if !fn(it.Next()) {
			return
		}
	}
}

// PostingCardinality returns the size of the posting set of value.
func (d *PostingTree[T]) PostingCardinality(value T) uint64 {
	e, ok := d.cow.snapshot().Get(d.key(value))
	if !ok || e.posting == nil {
		return 0
	}
	return e.posting.GetCardinality()
}

// Ascend yields snapshot entries in value order.
func (d *PostingTree[T]) Ascend(fn func(Entry[T]) bool) {
	d.cow.snapshot().Ascend(func(e postingEntry[T]) bool {
		return fn(e.Entry)
	})
}

// AscendRange yields snapshot entries in [from, to) in value order.
func (d *PostingTree[T]) AscendRange(from, to T, fn func(Entry[T]) bool) {
	d.cow.snapshot().AscendRange(d.key(from), d.key(to), func(e postingEntry[T]) bool {
		return fn(e.Entry)
	})
}

// AscendMutable yields entries from the writer's own view.
func (d *PostingTree[T]) AscendMutable(fn func(Entry[T]) bool) {
	d.cow.write.Ascend(func(e postingEntry[T]) bool {
		return fn(e.Entry)
	})
}

// Len returns the number of entries.
func (d *PostingTree[T]) Len() int { return d.cow.write.Len() }

// Clear drops every entry along with its posting set.
func (d *PostingTree[T]) Clear() {
	d.cow.write.Clear(false)
	d.cow.publish()
}

// TransferHoldLists stamps superseded snapshots with gen.
func (d *PostingTree[T]) TransferHoldLists(gen core.Generation) { d.cow.transferHoldLists(gen) }

// TrimHoldLists releases snapshots stamped strictly below firstUsed.
func (d *PostingTree[T]) TrimHoldLists(firstUsed core.Generation) { d.cow.trimHoldLists(firstUsed) }
