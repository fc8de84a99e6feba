package datastore

import "fmt"

// Policy holds the per-type sizing and growth rules for buffers.
type Policy struct {
	// AllocUnit rounds every buffer size up to a multiple of itself.
	AllocUnit int

	// MinElems is the floor for a freshly allocated buffer.
	MinElems int

	// MaxElems is the hard per-buffer capacity. A grow request that cannot
	// be satisfied within MaxElems even by linear fallback is a fatal
	// configuration error.
	MaxElems int

	// GrowthIncrement is the linear fallback step used once exponential
	// growth would overshoot MaxElems. It leaves headroom for compaction
	// instead of jumping straight to the ceiling.
	GrowthIncrement int
}

// DefaultPolicy returns the policy used when a type registers without one.
func DefaultPolicy() Policy {
	return Policy{
		AllocUnit:       16,
		MinElems:        64,
		MaxElems:        1 << 20,
		GrowthIncrement: 4096,
	}
}

func (p Policy) normalize() Policy {
	d := DefaultPolicy()
	if p.AllocUnit <= 0 {
		p.AllocUnit = d.AllocUnit
	}
	if p.MinElems <= 0 {
		p.MinElems = d.MinElems
	}
	if p.MaxElems <= 0 {
		p.MaxElems = d.MaxElems
	}
	if p.GrowthIncrement <= 0 {
		p.GrowthIncrement = d.GrowthIncrement
	}
	return p
}

// bufferType carries a registered policy plus the mutable per-type sizing
// state driven by the compaction protocol.
type bufferType struct {
	Policy

	// minSizeNeeded and accountedDead are set by SetSizeNeededAndDead
	// ahead of a compaction or resize so the next buffer is sized to the
	// declared budget.
	minSizeNeeded int
	accountedDead int

	wantCompact bool
}

func (t *bufferType) reservedElems(bufferID uint32) int {
	// Buffer 0 reserves element 0 so no valid entry encodes to NilRef.
	if bufferID == 0 {
		return 1
	}
	return 0
}

const growthRatioPercent = 150 // 1.5x amortized growth

// elemsToAlloc computes the element count for a new or grown buffer.
//
// usedElems is the type-wide used count; the dead subtracted from it is the
// accounted dead declared via setSizeNeededAndDead, not a per-buffer count,
// because only declared dead is guaranteed to be reclaimed by the compaction
// the new buffer serves.
//
// Sizing is two-tier: exponential (1.5x) while it fits, then a linear
// fallback with GrowthIncrement headroom. Exceeding MaxElems even after
// fallback aborts: it means the type was configured with a buffer budget too
// small for its data.
func (t *bufferType) elemsToAlloc(bufferID uint32, sizeNeeded, usedElems int) int {
	reserved := t.reservedElems(bufferID)
	if sizeNeeded < t.minSizeNeeded {
		sizeNeeded = t.minSizeNeeded
	}
	dead := t.accountedDead
	if dead > usedElems {
		dead = usedElems
	}

	newSize := usedElems - dead + sizeNeeded
	if usedElems != 0 {
		newSize = newSize * growthRatioPercent / 100
	}
	newSize += reserved
	if newSize < t.MinElems {
		newSize = t.MinElems
	}
	newSize = alignUp(newSize, t.AllocUnit)
	if newSize <= t.MaxElems {
		return newSize
	}

	newSize = alignUp(usedElems-dead+sizeNeeded+reserved+t.GrowthIncrement, t.AllocUnit)
	if newSize <= t.MaxElems {
		return t.MaxElems
	}

	panic(fmt.Sprintf("datastore: minimum new size (%d) exceeds max size (%d)", newSize, t.MaxElems))
}

// setSizeNeededAndDead declares the size budget and dead-element count the
// next allocation should account for.
func (t *bufferType) setSizeNeededAndDead(sizeNeeded, dead int) {
	t.minSizeNeeded = sizeNeeded
	t.accountedDead = dead
}

func alignUp(n, unit int) int {
	if unit <= 1 {
		return n
	}
	return (n + unit - 1) / unit * unit
}
