package uniquestore

import (
	"github.com/hupe1980/attrstore/core"
	"github.com/hupe1980/attrstore/dictionary"
)

// RelocationMap records where compaction moved live entries. External
// holders of EntryRefs (posting lists, attribute vectors) must consume it
// before the next trim; this store patches only its own dictionary.
type RelocationMap map[core.EntryRef]core.EntryRef

// Remap translates ref through the map, returning it unchanged when the
// entry did not move.
func (m RelocationMap) Remap(ref core.EntryRef) core.EntryRef {
	if newRef, ok := m[ref]; ok {
		return newRef
	}
	return ref
}

// PreCompact declares the size budget for the compaction target, rotates to
// a fresh active buffer and records the superseded buffers as compaction
// sources. It returns false, without starting, when no free buffer slot is
// available as the destination; the caller may retry after a trim.
func (s *Store[T]) PreCompact(sizeNeeded int) bool {
	if !s.data.HasFreeBuffer() {
		s.logger.Warn("compaction not possible: no free buffer slot")
		return false
	}
	active := s.data.ActiveBufferID(s.typeID)
	info := s.data.BufferInfo(active)
	s.data.SetSizeNeededAndDead(s.typeID, sizeNeeded, info.DeadElems)
	s.toHold = s.data.StartCompact(s.typeID)
	return true
}

// CompactLive walks the dictionary and relocates every live entry that
// still resides in a compaction source buffer, rewriting the dictionary
// refs in place. Dead entries are not resurrected: only dictionary-reachable
// entries are walked.
func (s *Store[T]) CompactLive() RelocationMap {
	sources := make(map[uint32]bool, len(s.toHold))
	for _, id := range s.toHold {
		sources[id] = true
	}

	// Collect first: rewriting refs while iterating the tree is not safe.
	var stale []dictionary.Entry[T]
	s.dict.AscendMutable(func(e dictionary.Entry[T]) bool {
		if sources[e.Ref.BufferID()] {
			stale = append(stale, e)
		}
		return true
	})

	remap := make(RelocationMap, len(stale))
	for _, e := range stale {
		newRef := s.data.Allocate(s.typeID)
		*s.data.Get(newRef) = *s.data.Get(e.Ref)
		s.dict.UpdateRef(e.Value, newRef)
		remap[e.Ref] = newRef
	}
	return remap
}

// PostCompact accounts the source buffers as dead and queues them for
// generation tagging. Their memory is released only after a later
// TransferHoldLists/TrimHoldLists cycle.
func (s *Store[T]) PostCompact() {
	s.data.FinishCompact(s.toHold)
	s.toHold = nil
}

// CompactWorst runs the full two-phase protocol sized to the live entries
// of the active buffer. It returns the relocation map for external ref
// holders, or ok=false when compaction could not start.
func (s *Store[T]) CompactWorst() (RelocationMap, bool) {
	info := s.data.BufferInfo(s.data.ActiveBufferID(s.typeID))
	live := info.UsedElems - info.DeadElems

	if !s.PreCompact(live) {
		return nil, false
	}
	remap := s.CompactLive()
	s.PostCompact()

	s.logger.Info("compaction completed",
		"relocated", len(remap),
		"reclaimed", info.DeadElems,
	)
	return remap, true
}
