// Package generation tracks reader liveness across storage generations.
//
// The storage layers never compute reader liveness themselves: they consume
// the FirstUsed watermark produced here when trimming hold lists. A reader
// registers a Guard on the current generation before dereferencing any
// EntryRef and releases it when done; memory tagged for reclamation at
// generation G is physically freed only once FirstUsed() > G.
package generation

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/attrstore/core"
)

// Handler owns the process-wide generation counter and the set of live
// reader guards. The counter is advanced by the single writer; guards may be
// taken and released from any goroutine.
type Handler struct {
	current atomic.Uint64

	mu        sync.Mutex
	live      map[core.Generation]int
	firstUsed atomic.Uint64
}

// NewHandler creates a Handler starting at generation 1, so that 0 can be
// used as an "untagged" sentinel by hold lists.
func NewHandler() *Handler {
	h := &Handler{live: make(map[core.Generation]int)}
	h.current.Store(1)
	h.firstUsed.Store(1)
	return h
}

// Current returns the current generation.
func (h *Handler) Current() core.Generation {
	return core.Generation(h.current.Load())
}

// Increment advances the generation counter and returns the previous value,
// which is the generation that tags the mutations just published.
func (h *Handler) Increment() core.Generation {
	gen := core.Generation(h.current.Add(1) - 1)
	h.mu.Lock()
	h.updateFirstUsedLocked()
	h.mu.Unlock()
	return gen
}

// FirstUsed returns the oldest generation any live reader is bound to, or
// the current generation when no readers are registered. This is the only
// legal watermark for TrimHoldLists.
func (h *Handler) FirstUsed() core.Generation {
	return core.Generation(h.firstUsed.Load())
}

// Take registers a reader on the current generation and returns its guard.
func (h *Handler) Take() *Guard {
	h.mu.Lock()
	defer h.mu.Unlock()
	gen := h.Current()
	h.live[gen]++
	h.updateFirstUsedLocked()
	return &Guard{handler: h, gen: gen}
}

func (h *Handler) release(gen core.Generation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := h.live[gen]; n <= 1 {
		delete(h.live, gen)
	} else {
		h.live[gen] = n - 1
	}
	h.updateFirstUsedLocked()
}

func (h *Handler) updateFirstUsedLocked() {
	first := h.Current()
	for gen := range h.live {
		if gen < first {
			first = gen
		}
	}
	h.firstUsed.Store(uint64(first))
}

// Guard binds a reader to the generation it started under. Release is
// idempotent.
type Guard struct {
	handler  *Handler
	gen      core.Generation
	released atomic.Bool
}

// Generation returns the generation the guard is bound to.
func (g *Guard) Generation() core.Generation { return g.gen }

// Release unregisters the reader, allowing the watermark to advance.
func (g *Guard) Release() {
	if g.released.CompareAndSwap(false, true) {
		g.handler.release(g.gen)
	}
}
