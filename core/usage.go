package core

// MemoryUsage summarizes the physical memory state of a store.
//
// Note on semantics:
//   - AllocatedBytes: total slab memory currently allocated
//   - UsedBytes: bytes occupied by elements handed out
//   - DeadBytes: bytes occupied by logically removed elements
//   - OnHoldBytes: bytes in superseded slabs awaiting generation-safe free
type MemoryUsage struct {
	AllocatedBytes uint64
	UsedBytes      uint64
	DeadBytes      uint64
	OnHoldBytes    uint64
}

// Add accumulates another usage sample into u.
func (u *MemoryUsage) Add(o MemoryUsage) {
	u.AllocatedBytes += o.AllocatedBytes
	u.UsedBytes += o.UsedBytes
	u.DeadBytes += o.DeadBytes
	u.OnHoldBytes += o.OnHoldBytes
}

// AddressSpaceUsage reports how much of the active buffer's address range is
// consumed. Callers use it to decide whether to trigger compaction.
type AddressSpaceUsage struct {
	Used  uint64 // elements handed out in the active buffer
	Dead  uint64 // elements marked dead in the active buffer
	Limit uint64 // maximum addressable offset
}

// UsageRatio returns the fraction of the address range in use.
func (a AddressSpaceUsage) UsageRatio() float64 {
	if a.Limit == 0 {
		return 0
	}
	return float64(a.Used) / float64(a.Limit)
}

// DeadRatio returns the fraction of handed-out elements that are dead.
func (a AddressSpaceUsage) DeadRatio() float64 {
	if a.Used == 0 {
		return 0
	}
	return float64(a.Dead) / float64(a.Used)
}
