package maintenance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/hupe1980/attrstore/core"
	"github.com/hupe1980/attrstore/enumstore"
	"github.com/hupe1980/attrstore/generation"
	"github.com/hupe1980/attrstore/uniquestore"
)

var _ Target = (*enumstore.EnumStore[string])(nil)

// dirtyStore returns a store with 64 values of which 48 were removed, well
// past any reasonable dead ratio.
func dirtyStore(t *testing.T) *enumstore.EnumStore[string] {
	t.Helper()
	e := enumstore.New[string]()
	refs := make([]core.EntryRef, 0, 64)
	for i := 0; i < 64; i++ {
		ref, _ := e.Add(fmt.Sprintf("v-%03d", i))
		refs = append(refs, ref)
	}
	for _, ref := range refs[:48] {
		e.Remove(ref)
	}
	return e
}

func TestRunOnceCompactsAndReclaims(t *testing.T) {
	h := generation.NewHandler()
	c := NewCompactor(h, WithDeadRatio(0.3), WithMinUsed(1))

	e := dirtyStore(t)
	var remap uniquestore.RelocationMap
	c.Register("tags", e, func(m uniquestore.RelocationMap) { remap = m })

	c.RunOnce()

	assert.Equal(t, 16, e.NumUniques())
	assert.Len(t, remap, 16)
	assert.Zero(t, e.MemoryUsage().OnHoldBytes)
	assert.Zero(t, e.AddressSpaceUsage().Dead)
}

func TestBelowThresholdIsLeftAlone(t *testing.T) {
	h := generation.NewHandler()
	c := NewCompactor(h, WithDeadRatio(0.9), WithMinUsed(1))

	e := dirtyStore(t)
	called := false
	c.Register("tags", e, func(uniquestore.RelocationMap) { called = true })

	c.RunOnce()

	assert.False(t, called)
	assert.NotZero(t, e.AddressSpaceUsage().Dead)
}

func TestReaderGuardDefersReclamation(t *testing.T) {
	h := generation.NewHandler()
	c := NewCompactor(h, WithDeadRatio(0.3), WithMinUsed(1))

	e := dirtyStore(t)
	c.Register("tags", e, nil)

	guard := h.Take()
	c.RunOnce()

	// Compaction ran, but the held buffers outlive the guarded reader.
	assert.Equal(t, 16, e.NumUniques())
	assert.NotZero(t, e.MemoryUsage().OnHoldBytes)

	guard.Release()
	c.RunOnce()
	assert.Zero(t, e.MemoryUsage().OnHoldBytes)
}

func TestCompactionRateLimit(t *testing.T) {
	h := generation.NewHandler()
	c := NewCompactor(h,
		WithDeadRatio(0.3),
		WithMinUsed(1),
		WithCompactionRate(rate.Every(time.Hour), 1),
	)

	first := dirtyStore(t)
	second := dirtyStore(t)
	c.Register("first", first, nil)
	c.Register("second", second, nil)

	c.RunOnce()

	// The single burst token went to the first target; the second stays
	// dirty until a later cycle.
	assert.Zero(t, first.AddressSpaceUsage().Dead)
	assert.NotZero(t, second.AddressSpaceUsage().Dead)
}

func TestFallbackResizeTriggersCompaction(t *testing.T) {
	h := generation.NewHandler()
	c := NewCompactor(h, WithDeadRatio(0.9), WithMinUsed(1<<20))

	e := enumstore.New[string]()
	e.Add("a")
	e.FallbackResize(4096)
	require.True(t, e.WantCompact())

	c.Register("tags", e, nil)
	c.RunOnce()

	assert.False(t, e.WantCompact())
}

func TestStartStop(t *testing.T) {
	h := generation.NewHandler()
	c := NewCompactor(h,
		WithInterval(5*time.Millisecond),
		WithDeadRatio(0.3),
		WithMinUsed(1),
		WithCompactionRate(rate.Inf, 1),
	)

	e := dirtyStore(t)
	c.Register("tags", e, nil)

	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool {
		return e.MemoryUsage().OnHoldBytes == 0 && e.AddressSpaceUsage().Dead == 0
	}, 2*time.Second, 10*time.Millisecond)
}
