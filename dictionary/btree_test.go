package dictionary

import (
	"strings"
	"testing"

	"github.com/hupe1980/attrstore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBTreeFindInsertRemove(t *testing.T) {
	d := NewBTree[string](strings.Compare)

	_, ok := d.Find("a")
	assert.False(t, ok)

	d.Insert("a", core.MakeRef(0, 1))
	ref, ok := d.Find("a")
	require.True(t, ok)
	assert.Equal(t, core.MakeRef(0, 1), ref)
	assert.Equal(t, 1, d.Len())

	assert.True(t, d.Remove("a"))
	assert.False(t, d.Remove("a"))
	_, ok = d.Find("a")
	assert.False(t, ok)
}

func TestBTreeOrderedIteration(t *testing.T) {
	d := NewBTree[string](strings.Compare)
	for i, v := range []string{"pear", "apple", "orange", "banana"} {
		d.Insert(v, core.MakeRef(0, uint32(i+1)))
	}

	var got []string
	d.Ascend(func(e Entry[string]) bool {
		got = append(got, e.Value)
		return true
	})
	assert.Equal(t, []string{"apple", "banana", "orange", "pear"}, got)
}

func TestBTreeAscendRange(t *testing.T) {
	d := NewBTree[string](strings.Compare)
	for i, v := range []string{"a", "b", "c", "d", "e"} {
		d.Insert(v, core.MakeRef(0, uint32(i+1)))
	}

	var got []string
	d.AscendRange("b", "d", func(e Entry[string]) bool {
		got = append(got, e.Value)
		return true
	})
	assert.Equal(t, []string{"b", "c"}, got)
}

func TestBTreeIterationIsRestartable(t *testing.T) {
	d := NewBTree[string](strings.Compare)
	for i, v := range []string{"a", "b", "c"} {
		d.Insert(v, core.MakeRef(0, uint32(i+1)))
	}

	var first []string
	d.Ascend(func(e Entry[string]) bool {
		first = append(first, e.Value)
		return len(first) < 2 // stop early
	})
	assert.Equal(t, []string{"a", "b"}, first)

	var second []string
	d.Ascend(func(e Entry[string]) bool {
		second = append(second, e.Value)
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, second)
}

func TestBTreeUpdateRef(t *testing.T) {
	d := NewBTree[string](strings.Compare)
	d.Insert("a", core.MakeRef(0, 1))

	require.True(t, d.UpdateRef("a", core.MakeRef(1, 9)))
	ref, ok := d.Find("a")
	require.True(t, ok)
	assert.Equal(t, core.MakeRef(1, 9), ref)

	assert.False(t, d.UpdateRef("missing", core.MakeRef(1, 1)))
	assert.Equal(t, 1, d.Len())
}

func TestBTreeSnapshotIsolation(t *testing.T) {
	d := NewBTree[string](strings.Compare)
	d.Insert("a", core.MakeRef(0, 1))

	// A reader mid-iteration keeps seeing the snapshot it started on even
	// though the writer keeps mutating.
	var seen []string
	d.Ascend(func(e Entry[string]) bool {
		seen = append(seen, e.Value)
		d.Insert("z", core.MakeRef(0, 2))
		d.Remove("a")
		return true
	})
	assert.Equal(t, []string{"a"}, seen)

	// The writer observes its own writes immediately.
	_, ok := d.Find("z")
	assert.True(t, ok)
	_, ok = d.Find("a")
	assert.False(t, ok)
}

func TestBTreeHoldListProtocol(t *testing.T) {
	d := NewBTree[string](strings.Compare)
	for i := 0; i < 10; i++ {
		d.Insert(string(rune('a'+i)), core.MakeRef(0, uint32(i+1)))
	}

	require.NotEmpty(t, d.cow.pending)
	d.TransferHoldLists(3)
	assert.Empty(t, d.cow.pending)
	require.NotEmpty(t, d.cow.held)

	d.TrimHoldLists(3)
	assert.NotEmpty(t, d.cow.held) // firstUsed <= gen: kept

	d.TrimHoldLists(4)
	assert.Empty(t, d.cow.held)
}
