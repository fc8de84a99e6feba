// Package maintenance drives background upkeep for attribute stores:
// dead-space compaction and generation-safe reclamation of held memory.
//
// Stores never free memory on their own schedule. The Compactor owns the
// cycle: it decides when a store's dead ratio justifies compaction, hands
// relocation maps to external EntryRef holders, and advances the generation
// handler so trimmed hold lists release only what no reader can still see.
package maintenance

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/attrstore/core"
	"github.com/hupe1980/attrstore/generation"
	"github.com/hupe1980/attrstore/uniquestore"
)

// Target is a store the compactor maintains.
type Target interface {
	WantCompact() bool
	AddressSpaceUsage() core.AddressSpaceUsage
	MemoryUsage() core.MemoryUsage
	CompactWorst() (uniquestore.RelocationMap, bool)
	TransferHoldLists(gen core.Generation)
	TrimHoldLists(firstUsed core.Generation)
}

// RelocationFunc receives the relocation map right after a target was
// compacted, within the same maintenance cycle. External EntryRef holders
// must patch their refs here; after the cycle the old refs point at held
// memory that the next trim may free.
type RelocationFunc func(uniquestore.RelocationMap)

type target struct {
	name       string
	store      Target
	onRelocate RelocationFunc
}

// Compactor periodically inspects registered stores, compacts the ones whose
// dead ratio crosses the threshold, and runs the transfer/trim generation
// protocol for all of them.
type Compactor struct {
	logger    *slog.Logger
	handler   *generation.Handler
	interval  time.Duration
	deadRatio float64
	minUsed   uint64
	limiter   *rate.Limiter
	lock      sync.Locker

	mu      sync.Mutex
	targets []target

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Option configures a Compactor.
type Option func(*Compactor)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compactor) { c.logger = l }
}

// WithInterval sets the maintenance cycle interval.
func WithInterval(d time.Duration) Option {
	return func(c *Compactor) { c.interval = d }
}

// WithDeadRatio sets the dead-element ratio above which a store is
// compacted.
func WithDeadRatio(r float64) Option {
	return func(c *Compactor) { c.deadRatio = r }
}

// WithMinUsed sets the minimum number of used elements before the dead
// ratio is considered. Tiny stores churn more than they waste.
func WithMinUsed(n uint64) Option {
	return func(c *Compactor) { c.minUsed = n }
}

// WithLock serializes maintenance cycles with an external writer. The
// compactor holds the lock for the whole per-target cycle; a concurrent
// writer must hold the same lock around its mutations.
func WithLock(l sync.Locker) Option {
	return func(c *Compactor) { c.lock = l }
}

// WithCompactionRate bounds how often compactions may run across all
// targets. Compaction copies every live entry, so an unbounded burst of
// eligible stores would stall foreground writers.
func WithCompactionRate(r rate.Limit, burst int) Option {
	return func(c *Compactor) { c.limiter = rate.NewLimiter(r, burst) }
}

// NewCompactor creates a Compactor bound to the given generation handler.
// The handler must be the same one readers take their guards from.
func NewCompactor(handler *generation.Handler, opts ...Option) *Compactor {
	c := &Compactor{
		handler:   handler,
		interval:  10 * time.Second,
		deadRatio: 0.2,
		minUsed:   1024,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Register adds a store to the maintenance cycle. onRelocate may be nil when
// no external refs point into the store.
func (c *Compactor) Register(name string, store Target, onRelocate RelocationFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets = append(c.targets, target{name: name, store: store, onRelocate: onRelocate})
}

// Start launches the background maintenance loop. Stop ends it.
func (c *Compactor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	g, ctx := errgroup.WithContext(ctx)
	c.group = g

	g.Go(func() error {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				c.RunOnce()
			}
		}
	})

	c.logger.Info("compactor started", "interval", c.interval, "dead_ratio", c.deadRatio)
}

// Stop terminates the background loop and waits for the in-flight cycle to
// finish.
func (c *Compactor) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	_ = c.group.Wait()
	c.logger.Info("compactor stopped")
}

// RunOnce executes a single maintenance cycle over all registered targets.
// It is what the background loop runs on every tick; callers may also invoke
// it directly for deterministic maintenance.
func (c *Compactor) RunOnce() {
	c.mu.Lock()
	targets := make([]target, len(c.targets))
	copy(targets, c.targets)
	c.mu.Unlock()

	for _, t := range targets {
		c.maintain(t)
	}
}

func (c *Compactor) maintain(t target) {
	if c.lock != nil {
		c.lock.Lock()
		defer c.lock.Unlock()
	}

	if c.shouldCompact(t.store) && c.limiter.Allow() {
		if remap, ok := t.store.CompactWorst(); ok {
			if t.onRelocate != nil && len(remap) > 0 {
				t.onRelocate(remap)
			}
			c.logger.Debug("store compacted", "target", t.name, "relocated", len(remap))
		}
	}

	// Transfer before trim: the compaction above queued its source buffers
	// for hold, and they must be stamped with a generation before the
	// watermark check can free anything.
	gen := c.handler.Increment()
	t.store.TransferHoldLists(gen)
	t.store.TrimHoldLists(c.handler.FirstUsed())
}

func (c *Compactor) shouldCompact(s Target) bool {
	if s.WantCompact() {
		return true
	}
	u := s.AddressSpaceUsage()
	return u.Used >= c.minUsed && u.DeadRatio() >= c.deadRatio
}
