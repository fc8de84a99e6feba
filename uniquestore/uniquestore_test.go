package uniquestore

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hupe1980/attrstore/core"
	"github.com/hupe1980/attrstore/dictionary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStringStore(opts ...Option[string]) *Store[string] {
	return New(strings.Compare, opts...)
}

func TestAddDeduplicates(t *testing.T) {
	s := newStringStore()

	ref1, created := s.Add("a")
	require.True(t, created)
	require.True(t, ref1.Valid())

	ref2, created := s.Add("a")
	assert.False(t, created)
	assert.Equal(t, ref1, ref2)

	assert.Equal(t, "a", s.Get(ref1))
	assert.Equal(t, 1, s.NumUniques())
}

func TestUniqueness(t *testing.T) {
	s := newStringStore()

	refs := make(map[string]core.EntryRef)
	for i := 0; i < 100; i++ {
		v := fmt.Sprintf("value-%d", i%10)
		ref, _ := s.Add(v)
		if prev, ok := refs[v]; ok {
			assert.Equal(t, prev, ref)
		}
		refs[v] = ref
	}

	assert.Equal(t, 10, s.NumUniques())
	for v, ref := range refs {
		assert.Equal(t, v, s.Get(ref))
	}
}

func TestRefCountLifecycle(t *testing.T) {
	s := newStringStore()

	// add("a") -> refcount 1, add again -> refcount 2, same ref.
	ref, created := s.Add("a")
	require.True(t, created)
	assert.Equal(t, uint32(1), s.RefCount(ref))

	again, created := s.Add("a")
	require.False(t, created)
	require.Equal(t, ref, again)
	assert.Equal(t, uint32(2), s.RefCount(ref))

	// remove -> 1, remove -> 0 (dead).
	s.Remove(ref)
	assert.Equal(t, uint32(1), s.RefCount(ref))
	s.Remove(ref)
	assert.Equal(t, uint32(0), s.RefCount(ref))

	// Dictionary lookup now returns none.
	_, ok := s.Find("a")
	assert.False(t, ok)

	// The entry is dead but not reclaimed: Get stays legal until the next
	// compaction cycle.
	assert.Equal(t, "a", s.Get(ref))
}

func TestRemoveDeadEntryIsNoOp(t *testing.T) {
	s := newStringStore()

	ref, _ := s.Add("a")
	s.Remove(ref)
	// Racing removals are harmless: logged warning, no-op.
	s.Remove(ref)
	assert.Equal(t, uint32(0), s.RefCount(ref))
}

func TestReferenceStabilityUnderOtherMutations(t *testing.T) {
	s := newStringStore()

	ref, _ := s.Add("stable")
	for i := 0; i < 500; i++ {
		other, _ := s.Add(fmt.Sprintf("other-%d", i))
		if i%3 == 0 {
			s.Remove(other)
		}
	}

	assert.Equal(t, "stable", s.Get(ref))
	got, ok := s.Find("stable")
	require.True(t, ok)
	assert.Equal(t, ref, got)
}

func TestAddAfterHeavyRemoval(t *testing.T) {
	s := newStringStore()

	// Fill the default initial buffer, then kill most of the entries
	// without compacting. The dead entries still occupy their slots, so
	// the next growth must size past all of them.
	refs := make([]core.EntryRef, 0, 63)
	for i := 0; i < 63; i++ {
		ref, _ := s.Add(fmt.Sprintf("v-%02d", i))
		refs = append(refs, ref)
	}
	for _, ref := range refs[:50] {
		s.Remove(ref)
	}

	for i := 0; i < 10; i++ {
		ref, created := s.Add(fmt.Sprintf("extra-%d", i))
		require.True(t, created)
		assert.Equal(t, fmt.Sprintf("extra-%d", i), s.Get(ref))
	}
	assert.Equal(t, "v-62", s.Get(refs[62]))
}

func TestOrderedIterationAndRange(t *testing.T) {
	s := newStringStore()
	for _, v := range []string{"pear", "apple", "orange"} {
		s.Add(v)
	}

	var got []string
	s.Dictionary().Ascend(func(e dictionary.Entry[string]) bool {
		got = append(got, e.Value)
		return true
	})
	assert.Equal(t, []string{"apple", "orange", "pear"}, got)

	got = got[:0]
	s.Dictionary().AscendRange("apple", "pear", func(e dictionary.Entry[string]) bool {
		got = append(got, e.Value)
		return true
	})
	assert.Equal(t, []string{"apple", "orange"}, got)
}

func TestMemoryUsage(t *testing.T) {
	s := newStringStore()
	for i := 0; i < 100; i++ {
		s.Add(fmt.Sprintf("v-%d", i))
	}

	u := s.MemoryUsage()
	assert.NotZero(t, u.AllocatedBytes)
	assert.NotZero(t, u.UsedBytes)

	a := s.AddressSpaceUsage()
	assert.Equal(t, uint64(101), a.Used) // 100 values + reserved element
	assert.Zero(t, a.Dead)
}
