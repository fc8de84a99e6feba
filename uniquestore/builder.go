package uniquestore

import (
	"github.com/hupe1980/attrstore/core"
	"github.com/hupe1980/attrstore/dictionary"
)

// Builder accumulates (value, ref) pairs and inserts them into the
// dictionary in one pass. Deserialization uses it to rebuild the index
// without paying per-insert cost on a store that is known to be quiescent.
type Builder[T any] struct {
	store   *Store[T]
	entries []dictionary.Entry[T]
}

// NewBuilder returns a Builder expecting roughly hint values.
func (s *Store[T]) NewBuilder(hint int) *Builder[T] {
	return &Builder[T]{
		store:   s,
		entries: make([]dictionary.Entry[T], 0, hint),
	}
}

// Add allocates storage for value with refcount 1 and stages its dictionary
// entry. The value must not already be present; Builder performs no
// deduplication.
func (b *Builder[T]) Add(value T) core.EntryRef {
	ref := b.store.data.Allocate(b.store.typeID)
	*b.store.data.Get(ref) = entry[T]{value: value, refCount: 1}
	b.entries = append(b.entries, dictionary.Entry[T]{Value: value, Ref: ref})
	return ref
}

// Build inserts all staged entries into the dictionary.
func (b *Builder[T]) Build() {
	for _, e := range b.entries {
		b.store.dict.Insert(e.Value, e.Ref)
	}
	b.entries = nil
}
