package uniquestore

import (
	"strings"
	"testing"

	"github.com/hupe1980/attrstore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderBulkInsert(t *testing.T) {
	s := New(strings.Compare)

	b := s.NewBuilder(3)
	refA := b.Add("apple")
	refB := b.Add("banana")
	refC := b.Add("cherry")

	// Staged entries are not visible until Build.
	_, ok := s.Find("apple")
	assert.False(t, ok)

	b.Build()

	got, ok := s.Find("apple")
	require.True(t, ok)
	assert.Equal(t, refA, got)
	got, ok = s.Find("banana")
	require.True(t, ok)
	assert.Equal(t, refB, got)
	got, ok = s.Find("cherry")
	require.True(t, ok)
	assert.Equal(t, refC, got)

	assert.Equal(t, uint32(1), s.RefCount(refA))
	assert.Equal(t, 3, s.NumUniques())
}

func TestEnumeratorOrderedWalk(t *testing.T) {
	s := New(strings.Compare)
	for _, v := range []string{"delta", "alpha", "charlie", "bravo"} {
		s.Add(v)
	}

	e := s.NewEnumerator()
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, e.Values())

	refs := e.Refs()
	require.Len(t, refs, 4)
	for i, v := range e.Values() {
		assert.Equal(t, v, s.Get(refs[i]))
	}
}

func TestEnumeratorEarlyStop(t *testing.T) {
	s := New(strings.Compare)
	for _, v := range []string{"a", "b", "c"} {
		s.Add(v)
	}

	var seen []string
	s.NewEnumerator().ForEach(func(_ core.EntryRef, v string) bool {
		seen = append(seen, v)
		return false
	})
	assert.Equal(t, []string{"a"}, seen)
}
