package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertGet(t *testing.T) {
	tbl := NewTable[string]()
	ref := tbl.Insert("a")

	v, err := tbl.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
}

func TestGetAfterRemoveIsStale(t *testing.T) {
	tbl := NewTable[string]()
	ref := tbl.Insert("a")

	require.NoError(t, tbl.Remove(ref))

	_, err := tbl.Get(ref)
	assert.ErrorIs(t, err, ErrStale)
}

func TestRemoveTwiceIsStale(t *testing.T) {
	tbl := NewTable[string]()
	ref := tbl.Insert("a")
	require.NoError(t, tbl.Remove(ref))

	assert.ErrorIs(t, tbl.Remove(ref), ErrStale)
}

func TestSlotReuseBumpsEpoch(t *testing.T) {
	tbl := NewTable[string]()
	first := tbl.Insert("a")
	require.NoError(t, tbl.Remove(first))

	second := tbl.Insert("b")
	assert.Equal(t, first.Index, second.Index)
	assert.NotEqual(t, first.Epoch, second.Epoch)

	_, err := tbl.Get(first)
	assert.ErrorIs(t, err, ErrStale)

	v, err := tbl.Get(second)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestGetUnknownIndexIsStale(t *testing.T) {
	tbl := NewTable[string]()
	_, err := tbl.Get(Ref{Index: 42, Epoch: 1})
	assert.ErrorIs(t, err, ErrStale)
}

func TestValuesReturnsOnlyLive(t *testing.T) {
	tbl := NewTable[int]()
	a := tbl.Insert(1)
	tbl.Insert(2)
	require.NoError(t, tbl.Remove(a))
	tbl.Insert(3)

	assert.ElementsMatch(t, []int{2, 3}, tbl.Values())
}

func TestEntriesCarryRetrievableRefs(t *testing.T) {
	tbl := NewTable[string]()
	a := tbl.Insert("a")
	require.NoError(t, tbl.Remove(a))
	tbl.Insert("b")
	tbl.Insert("c")

	entries := tbl.Entries()
	require.Len(t, entries, 2)

	for _, e := range entries {
		v, err := tbl.Get(e.Ref)
		require.NoError(t, err)
		assert.Equal(t, e.Value, v)
	}
}
