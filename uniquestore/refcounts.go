package uniquestore

import (
	"fmt"

	"github.com/hupe1980/attrstore/dictionary"
)

// Reset drops all storage and the dictionary and re-initializes the store
// sized to sizeNeeded elements. Only legal while no readers are registered.
func (s *Store[T]) Reset(sizeNeeded int) {
	s.data.Reset(sizeNeeded)
	s.dict.Clear()
	s.toHold = nil
}

// FallbackResize grows the active buffer in place instead of rotating, and
// flags the store as wanting compaction at the next opportunity. Used when
// growth must succeed before the compaction machinery is primed, e.g.
// during bulk load.
func (s *Store[T]) FallbackResize(sizeNeeded int) {
	s.data.FallbackResize(s.typeID, sizeNeeded)
}

// WantCompact reports whether a fallback resize deferred a compaction.
func (s *Store[T]) WantCompact() bool {
	return s.data.WantCompact(s.typeID)
}

// FixupRefCounts patches every entry's refcount from history, which must be
// aligned to dictionary iteration order, then frees entries whose
// reconstructed refcount is zero. Refcounts are rebuilt from external
// posting data after a load, not stored in the serialized stream.
//
// A length mismatch between history and the dictionary is a fatal
// inconsistency: it means a corrupted or incompatible file.
func (s *Store[T]) FixupRefCounts(history []uint32) {
	if len(history) == 0 {
		return
	}
	if len(history) != s.dict.Len() {
		panic(fmt.Sprintf("uniquestore: refcount history length (%d) does not match dictionary size (%d)",
			len(history), s.dict.Len()))
	}

	var entries []dictionary.Entry[T]
	s.dict.AscendMutable(func(e dictionary.Entry[T]) bool {
		entries = append(entries, e)
		return true
	})
	for i, e := range entries {
		s.data.Get(e.Ref).refCount = history[i]
	}
	s.FreeUnusedValues()
}

// FreeUnusedValues removes every entry whose refcount is zero from the
// dictionary and marks its element dead.
func (s *Store[T]) FreeUnusedValues() {
	var dead []dictionary.Entry[T]
	s.dict.AscendMutable(func(e dictionary.Entry[T]) bool {
		if s.data.Get(e.Ref).refCount == 0 {
			dead = append(dead, e)
		}
		return true
	})
	for _, e := range dead {
		s.dict.Remove(e.Value)
		s.data.FreeElement(e.Ref)
	}
}
