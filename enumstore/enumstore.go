// Package enumstore provides the attribute-facing enum value store: a
// deduplicating, refcounted store of scalar or string values with an
// ordered dictionary, optional per-value posting sets, and a serialized
// form for attribute save/load.
package enumstore

import (
	"cmp"
	"io"
	"log/slog"

	"github.com/hupe1980/attrstore/codec"
	"github.com/hupe1980/attrstore/core"
	"github.com/hupe1980/attrstore/datastore"
	"github.com/hupe1980/attrstore/dictionary"
	"github.com/hupe1980/attrstore/uniquestore"
)

// Value is the set of types an EnumStore can hold.
type Value interface {
	int8 | int16 | int32 | int64 | float32 | float64 | string
}

// EnumStore deduplicates attribute values behind EntryRef handles. It is a
// uniquestore.Store specialization wired for enum-style usage: value order
// comes from cmp.Compare, the dictionary optionally carries posting sets,
// and the store round-trips through a flat serialized stream.
type EnumStore[T Value] struct {
	*uniquestore.Store[T]

	logger   *slog.Logger
	postings *dictionary.PostingTree[T]
	codec    codec.Codec
}

// Option configures an EnumStore.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	postings   bool
	codec      codec.Codec
	policy     datastore.Policy
	maxBuffers int
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithPostings selects the posting-tree dictionary variant, used when the
// attribute layer needs per-value document posting sets.
func WithPostings() Option {
	return func(c *config) { c.postings = true }
}

// WithCodec sets the compression codec for Save/Load.
func WithCodec(cd codec.Codec) Option {
	return func(c *config) { c.codec = cd }
}

// WithPolicy sets the buffer sizing policy.
func WithPolicy(p datastore.Policy) Option {
	return func(c *config) { c.policy = p }
}

// WithMaxBuffers bounds the number of buffer slots.
func WithMaxBuffers(n int) Option {
	return func(c *config) { c.maxBuffers = n }
}

// New creates an empty EnumStore.
func New[T Value](opts ...Option) *EnumStore[T] {
	cfg := config{
		codec:      codec.Default,
		policy:     datastore.DefaultPolicy(),
		maxBuffers: 4,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	compare := dictionary.Compare[T](cmp.Compare[T])

	var (
		dict dictionary.Dictionary[T]
		pt   *dictionary.PostingTree[T]
	)
	if cfg.postings {
		pt = dictionary.NewPostingTree(compare)
		dict = pt
	} else {
		dict = dictionary.NewBTree(compare)
	}

	us := uniquestore.New(compare,
		uniquestore.WithLogger[T](cfg.logger),
		uniquestore.WithPolicy[T](cfg.policy),
		uniquestore.WithMaxBuffers[T](cfg.maxBuffers),
		uniquestore.WithDictionary[T](dict),
	)

	return &EnumStore[T]{
		Store:    us,
		logger:   cfg.logger,
		postings: pt,
		codec:    cfg.codec,
	}
}

// HasPostings reports whether the posting dictionary variant is active.
func (e *EnumStore[T]) HasPostings() bool { return e.postings != nil }

// AddPosting records docID in the posting set of the value behind ref.
// Without postings, or for an unknown value, this is a logged no-op.
func (e *EnumStore[T]) AddPosting(ref core.EntryRef, docID uint32) {
	if e.postings == nil {
		e.logger.Warn("posting update on store without postings", "ref", ref.String())
		return
	}
	if !e.postings.AddPosting(e.Get(ref), docID) {
		e.logger.Warn("posting update for unknown value", "ref", ref.String(), "doc", docID)
	}
}

// RemovePosting removes docID from the posting set of the value behind ref.
// Without postings, or for an unknown value, this is a logged no-op.
func (e *EnumStore[T]) RemovePosting(ref core.EntryRef, docID uint32) {
	if e.postings == nil {
		e.logger.Warn("posting update on store without postings", "ref", ref.String())
		return
	}
	if !e.postings.RemovePosting(e.Get(ref), docID) {
		e.logger.Warn("posting removal for unknown value", "ref", ref.String(), "doc", docID)
	}
}

// Postings iterates the posting set of value in ascending docID order.
func (e *EnumStore[T]) Postings(value T, fn func(docID uint32) bool) {
	if e.postings == nil {
		return
	}
	e.postings.Postings(value, fn)
}

// PostingCardinality returns the size of the posting set of value.
func (e *EnumStore[T]) PostingCardinality(value T) uint64 {
	if e.postings == nil {
		return 0
	}
	return e.postings.PostingCardinality(value)
}
