package generation

import (
	"sync"
	"testing"

	"github.com/hupe1980/attrstore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerNoReaders(t *testing.T) {
	h := NewHandler()
	assert.Equal(t, core.Generation(1), h.Current())
	assert.Equal(t, core.Generation(1), h.FirstUsed())

	h.Increment()
	h.Increment()
	assert.Equal(t, core.Generation(3), h.Current())
	// With no readers the watermark tracks the current generation.
	assert.Equal(t, core.Generation(3), h.FirstUsed())
}

func TestHandlerWatermarkHeldByOldestGuard(t *testing.T) {
	h := NewHandler()

	g1 := h.Take()
	require.Equal(t, core.Generation(1), g1.Generation())

	h.Increment()
	g2 := h.Take()
	require.Equal(t, core.Generation(2), g2.Generation())

	h.Increment()
	assert.Equal(t, core.Generation(3), h.Current())
	assert.Equal(t, core.Generation(1), h.FirstUsed())

	// Releasing the newer guard does not move the watermark.
	g2.Release()
	assert.Equal(t, core.Generation(1), h.FirstUsed())

	// Releasing the oldest does.
	g1.Release()
	assert.Equal(t, core.Generation(3), h.FirstUsed())
}

func TestGuardReleaseIdempotent(t *testing.T) {
	h := NewHandler()
	g := h.Take()
	other := h.Take()

	g.Release()
	g.Release()

	// The double release must not have freed the second guard's slot.
	assert.Equal(t, core.Generation(1), h.FirstUsed())
	other.Release()
	assert.Equal(t, core.Generation(1), h.FirstUsed())
}

func TestHandlerConcurrentGuards(t *testing.T) {
	h := NewHandler()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g := h.Take()
				g.Release()
			}
		}()
	}
	for i := 0; i < 100; i++ {
		h.Increment()
	}
	wg.Wait()

	assert.Equal(t, h.Current(), h.FirstUsed())
}
