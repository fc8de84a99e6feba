package enumstore

import (
	"fmt"
	"testing"

	"github.com/hupe1980/attrstore/core"
	"github.com/hupe1980/attrstore/datastore"
	"github.com/hupe1980/attrstore/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringEnumBasics(t *testing.T) {
	e := New[string]()

	ref, created := e.Add("red")
	require.True(t, created)
	_, created = e.Add("red")
	assert.False(t, created)
	assert.Equal(t, "red", e.Get(ref))
	assert.Equal(t, uint32(2), e.RefCount(ref))
}

func TestNumericEnumOrdering(t *testing.T) {
	e := New[int64]()
	for _, v := range []int64{42, -7, 0, 1000} {
		e.Add(v)
	}

	assert.Equal(t, []int64{-7, 0, 42, 1000}, e.NewEnumerator().Values())
}

func TestFloatEnum(t *testing.T) {
	e := New[float64]()
	ref, _ := e.Add(3.5)
	assert.Equal(t, 3.5, e.Get(ref))

	e.Add(1.25)
	assert.Equal(t, []float64{1.25, 3.5}, e.NewEnumerator().Values())
}

func TestPostingsLifecycle(t *testing.T) {
	e := New[string](WithPostings())
	require.True(t, e.HasPostings())

	ref, _ := e.Add("color")
	e.AddPosting(ref, 10)
	e.AddPosting(ref, 20)
	e.RemovePosting(ref, 10)

	assert.Equal(t, uint64(1), e.PostingCardinality("color"))

	var docs []uint32
	e.Postings("color", func(d uint32) bool {
		docs = append(docs, d)
		return true
	})
	assert.Equal(t, []uint32{20}, docs)
}

func TestPostingsDisabledIsNoOp(t *testing.T) {
	e := New[string]()
	require.False(t, e.HasPostings())

	ref, _ := e.Add("color")
	e.AddPosting(ref, 1) // logged no-op
	assert.Zero(t, e.PostingCardinality("color"))
}

func TestPostingsSurviveCompaction(t *testing.T) {
	e := New[string](WithPostings())

	ref, _ := e.Add("color")
	e.AddPosting(ref, 7)
	for i := 0; i < 20; i++ {
		victim, _ := e.Add(fmt.Sprintf("dead-%d", i))
		e.Remove(victim)
	}

	remap, ok := e.CompactWorst()
	require.True(t, ok)

	newRef := remap.Remap(ref)
	assert.Equal(t, "color", e.Get(newRef))
	assert.Equal(t, uint64(1), e.PostingCardinality("color"))
}

func TestGrowthLinearFallback(t *testing.T) {
	// Max 1000 elements, growth ratio 1.5: pushing usage past the point
	// where exponential sizing overshoots must take the linear branch, not
	// fail, as long as the fallback stays within budget.
	e := New[int64](WithPolicy(datastore.Policy{
		AllocUnit:       1,
		MinElems:        16,
		MaxElems:        1000,
		GrowthIncrement: 10,
	}))

	for i := int64(0); i < 900; i++ {
		e.Add(i)
	}

	u := e.AddressSpaceUsage()
	assert.Equal(t, uint64(901), u.Used)
}

func TestGrowthPastBudgetIsFatal(t *testing.T) {
	e := New[int64](WithPolicy(datastore.Policy{
		AllocUnit:       1,
		MinElems:        16,
		MaxElems:        100,
		GrowthIncrement: 10,
	}))

	assert.Panics(t, func() {
		for i := int64(0); i < 200; i++ {
			e.Add(i)
		}
	})
}

func TestFallbackResizeDefersCompaction(t *testing.T) {
	e := New[string]()
	e.Add("a")

	require.False(t, e.WantCompact())
	e.FallbackResize(4096)
	assert.True(t, e.WantCompact())

	// The deferred compaction then runs normally.
	_, ok := e.CompactWorst()
	require.True(t, ok)
	assert.False(t, e.WantCompact())
}

func TestMaintenanceCycle(t *testing.T) {
	e := New[string]()
	h := generation.NewHandler()

	refs := make([]core.EntryRef, 0, 64)
	for i := 0; i < 64; i++ {
		ref, _ := e.Add(fmt.Sprintf("v-%d", i))
		refs = append(refs, ref)
	}
	for _, ref := range refs[:32] {
		e.Remove(ref)
	}

	_, ok := e.CompactWorst()
	require.True(t, ok)

	gen := h.Increment()
	e.TransferHoldLists(gen)
	e.TrimHoldLists(h.FirstUsed())

	u := e.MemoryUsage()
	assert.Zero(t, u.OnHoldBytes)
	assert.Equal(t, 32, e.NumUniques())
}
