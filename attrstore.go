package attrstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hupe1980/attrstore/codec"
	"github.com/hupe1980/attrstore/core"
	"github.com/hupe1980/attrstore/datastore"
	"github.com/hupe1980/attrstore/enumstore"
	"github.com/hupe1980/attrstore/generation"
	"github.com/hupe1980/attrstore/maintenance"
)

// Attribute bundles an enum value store with its generation handler and
// compactor. It is the top-level handle applications work with: writes go
// through the embedded EnumStore, readers pin memory via Reader, and
// maintenance runs either per Commit or in the background.
//
// All mutating methods, Commit and Compact included, belong to a single
// writer. Readers holding a guard may dereference EntryRefs from any
// goroutine. Background maintenance acts as the writer while a cycle runs;
// a writer concurrent with StartMaintenance must hold WriteLock around its
// mutations.
type Attribute[T enumstore.Value] struct {
	*enumstore.EnumStore[T]

	name      string
	logger    *Logger
	handler   *generation.Handler
	compactor *maintenance.Compactor
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Option configures an Attribute.
type Option func(*config)

type config struct {
	logger     *Logger
	enumOpts   []enumstore.Option
	interval   time.Duration
	deadRatio  float64
	minUsed    uint64
	onRelocate maintenance.RelocationFunc
}

// WithLogger sets the logger.
func WithLogger(l *Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithPostings enables per-value document posting sets.
func WithPostings() Option {
	return func(c *config) { c.enumOpts = append(c.enumOpts, enumstore.WithPostings()) }
}

// WithCodec sets the snapshot compression codec.
func WithCodec(cd codec.Codec) Option {
	return func(c *config) { c.enumOpts = append(c.enumOpts, enumstore.WithCodec(cd)) }
}

// WithPolicy sets the buffer sizing policy.
func WithPolicy(p datastore.Policy) Option {
	return func(c *config) { c.enumOpts = append(c.enumOpts, enumstore.WithPolicy(p)) }
}

// WithMaxBuffers bounds the number of buffer slots.
func WithMaxBuffers(n int) Option {
	return func(c *config) { c.enumOpts = append(c.enumOpts, enumstore.WithMaxBuffers(n)) }
}

// WithMaintenanceInterval sets the background maintenance cycle interval.
func WithMaintenanceInterval(d time.Duration) Option {
	return func(c *config) { c.interval = d }
}

// WithDeadRatio sets the dead-element ratio that triggers compaction.
func WithDeadRatio(r float64) Option {
	return func(c *config) { c.deadRatio = r }
}

// WithMinUsed sets the minimum used elements before the dead ratio is
// considered.
func WithMinUsed(n uint64) Option {
	return func(c *config) { c.minUsed = n }
}

// WithRelocationFunc registers a callback that receives the relocation map
// after every compaction. External holders of EntryRefs into this attribute
// (document vectors, caches) must patch their refs in it.
func WithRelocationFunc(fn maintenance.RelocationFunc) Option {
	return func(c *config) { c.onRelocate = fn }
}

// New creates an attribute store for values of type T.
func New[T enumstore.Value](name string, opts ...Option) *Attribute[T] {
	cfg := config{
		interval:  10 * time.Second,
		deadRatio: 0.2,
		minUsed:   1024,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = NoopLogger()
	}
	logger := cfg.logger.WithAttribute(name)

	a := &Attribute[T]{
		name:    name,
		logger:  logger,
		handler: generation.NewHandler(),
	}
	a.EnumStore = enumstore.New[T](append(cfg.enumOpts, enumstore.WithLogger(logger.Logger))...)

	a.compactor = maintenance.NewCompactor(a.handler,
		maintenance.WithLogger(logger.Logger),
		maintenance.WithInterval(cfg.interval),
		maintenance.WithDeadRatio(cfg.deadRatio),
		maintenance.WithMinUsed(cfg.minUsed),
		maintenance.WithLock(&a.writeMu),
	)
	a.compactor.Register(name, a.EnumStore, cfg.onRelocate)

	return a
}

// Name returns the attribute name.
func (a *Attribute[T]) Name() string { return a.name }

// Ref returns the ref of value, or ErrNotFound.
func (a *Attribute[T]) Ref(value T) (core.EntryRef, error) {
	ref, ok := a.Find(value)
	if !ok {
		return core.NilRef, fmt.Errorf("%w: attribute %q", ErrNotFound, a.name)
	}
	return ref, nil
}

// Value returns the value behind ref. Unlike Get, a nil or stale ref yields
// ErrStaleRef instead of a panic, for callers that hold refs across
// compactions they do not control.
func (a *Attribute[T]) Value(ref core.EntryRef) (T, error) {
	if !a.Holds(ref) {
		var zero T
		return zero, &ErrStaleRef{Ref: ref.String()}
	}
	return a.Get(ref), nil
}

// WriteLock returns the mutex that serializes writers with background
// maintenance cycles. It is only needed while StartMaintenance is active.
func (a *Attribute[T]) WriteLock() *sync.Mutex { return &a.writeMu }

// Reader pins the current generation. Every EntryRef the caller
// dereferences stays valid until the guard is released.
func (a *Attribute[T]) Reader() *generation.Guard {
	return a.handler.Take()
}

// Commit publishes the writer's pending mutations: the hold lists are
// stamped with the generation just ended and memory no reader can see
// anymore is freed. Call it after a batch of writes, or rely on background
// maintenance.
func (a *Attribute[T]) Commit() {
	gen := a.handler.Increment()
	a.TransferHoldLists(gen)
	a.TrimHoldLists(a.handler.FirstUsed())
}

// Compact forces a full maintenance cycle now, regardless of thresholds,
// and returns whether compaction ran.
func (a *Attribute[T]) Compact() bool {
	_, ok := a.CompactWorst()
	a.Commit()
	return ok
}

// StartMaintenance launches background compaction and reclamation.
func (a *Attribute[T]) StartMaintenance(ctx context.Context) {
	a.compactor.Start(ctx)
}

// Close stops background maintenance. The store itself holds no external
// resources.
func (a *Attribute[T]) Close() {
	a.closeOnce.Do(func() {
		a.compactor.Stop()
	})
}

// SaveFile writes a snapshot of the attribute to path.
func (a *Attribute[T]) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		a.logger.LogSave(a.name, 0, err)
		return fmt.Errorf("attrstore: failed to create snapshot: %w", err)
	}

	if err := a.Save(f); err != nil {
		_ = f.Close()
		a.logger.LogSave(a.name, 0, err)
		return fmt.Errorf("attrstore: failed to write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		a.logger.LogSave(a.name, 0, err)
		return fmt.Errorf("attrstore: failed to close snapshot: %w", err)
	}

	a.logger.LogSave(a.name, a.NumUniques(), nil)
	return nil
}

// LoadFile resets the attribute from a snapshot written by SaveFile and
// returns the refs in stream order.
func (a *Attribute[T]) LoadFile(path string) ([]core.EntryRef, error) {
	f, err := os.Open(path)
	if err != nil {
		a.logger.LogLoad(a.name, 0, err)
		return nil, fmt.Errorf("attrstore: failed to open snapshot: %w", err)
	}
	defer f.Close()

	refs, err := a.Load(f)
	if err != nil {
		a.logger.LogLoad(a.name, 0, err)
		return nil, fmt.Errorf("attrstore: failed to load snapshot: %w", err)
	}

	a.logger.LogLoad(a.name, len(refs), nil)
	return refs, nil
}
