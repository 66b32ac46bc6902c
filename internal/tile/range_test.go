package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(r Range) [][]int {
	var out [][]int
	for c := range r.All() {
		out = append(out, c)
	}
	return out
}

func TestNext(t *testing.T) {
	begin, end := []int{1, 0}, []int{3, 2}
	c, ok := Next([]int{1, 0}, begin, end)
	require.True(t, ok)
	assert.Equal(t, []int{2, 0}, c)

	c, ok = Next(c, begin, end)
	require.True(t, ok)
	assert.Equal(t, []int{1, 1}, c)

	c, ok = Next([]int{2, 1}, begin, end)
	assert.False(t, ok)
	assert.Nil(t, c)
}

func TestRange_All(t *testing.T) {
	r := NewRange([]int{1, 2}, []int{3, 4})
	want := [][]int{{1, 2}, {2, 2}, {1, 3}, {2, 3}}
	assert.Equal(t, want, collect(r))
	// Restartable.
	assert.Equal(t, want, collect(r))
	assert.Equal(t, 4, r.Count())
}

func TestRange_MatchesLinearOrder(t *testing.T) {
	shape := []int{3, 2, 2}
	tr := MustTraits(shape)
	i := 0
	for c := range Full(shape).All() {
		assert.Equal(t, i, tr.IndexToLinear(c))
		i++
	}
	assert.Equal(t, tr.Nelems(), i)
}

func TestRange_EdgeCases(t *testing.T) {
	empty := NewRange([]int{0, 2}, []int{3, 2})
	assert.True(t, empty.Empty())
	assert.Equal(t, 0, empty.Count())
	assert.Empty(t, collect(empty))

	scalar := NewRange(nil, nil)
	assert.Equal(t, 1, scalar.Count())
	got := collect(scalar)
	require.Len(t, got, 1)
	assert.Len(t, got[0], 0)
}

func TestRange_EarlyStop(t *testing.T) {
	n := 0
	for range Full([]int{4, 4}).All() {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}
