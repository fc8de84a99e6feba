package uniquestore

import (
	"github.com/hupe1980/attrstore/core"
	"github.com/hupe1980/attrstore/dictionary"
)

// Enumerator walks the store's live entries in value order. Each walk runs
// over the dictionary snapshot current at that moment; walks are finite and
// restartable.
type Enumerator[T any] struct {
	dict dictionary.Dictionary[T]
}

// NewEnumerator returns an Enumerator over the store's dictionary.
func (s *Store[T]) NewEnumerator() *Enumerator[T] {
	return &Enumerator[T]{dict: s.dict}
}

// ForEach yields (ref, value) pairs in value order until fn returns false.
func (e *Enumerator[T]) ForEach(fn func(ref core.EntryRef, value T) bool) {
	e.dict.Ascend(func(de dictionary.Entry[T]) bool {
		return fn(de.Ref, de.Value)
	})
}

// Values returns all live values in value order.
func (e *Enumerator[T]) Values() []T {
	values := make([]T, 0, e.dict.Len())
	e.ForEach(func(_ core.EntryRef, v T) bool {
		values = append(values, v)
		return true
	})
	return values
}

// Refs returns all live refs in value order.
func (e *Enumerator[T]) Refs() []core.EntryRef {
	refs := make([]core.EntryRef, 0, e.dict.Len())
	e.ForEach(func(ref core.EntryRef, _ T) bool {
		refs = append(refs, ref)
		return true
	})
	return refs
}
