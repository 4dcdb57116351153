package distquery

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/distq/space"
)

func TestSortByKey(t *testing.T) {
	sp := space.NewHost(4)
	defer sp.Close()

	keys := []int32{3, 1, 2, 0}
	indices := []int32{30, 10, 20, 0}
	distances := []float32{0.3, 0.1, 0.2, 0.0}

	err := SortByKey(sp, keys, View(indices), View(distances))
	require.NoError(t, err)

	assert.Equal(t, []int32{0, 1, 2, 3}, keys)
	assert.Equal(t, []int32{0, 10, 20, 30}, indices)
	assert.Equal(t, []float32{0.0, 0.1, 0.2, 0.3}, distances)
}

func TestSortByKeyPermutationConsistency(t *testing.T) {
	sp := space.NewHost(4)
	defer sp.Close()

	rng := rand.New(rand.NewSource(7))
	const n = 500

	keys := make([]int32, n)
	companionA := make([]int64, n)
	companionB := make([]float32, n)
	for i := range keys {
		keys[i] = int32(rng.Intn(50)) // duplicates on purpose
		// Tag both companions with the original key so any independent
		// permutation is detectable.
		companionA[i] = int64(keys[i])*1000 + int64(i)
		companionB[i] = float32(keys[i])
	}

	err := SortByKey(sp, keys, View(companionA), View(companionB))
	require.NoError(t, err)

	assert.True(t, sort.SliceIsSorted(keys, func(i, j int) bool { return keys[i] < keys[j] }))
	for i := range keys {
		assert.Equal(t, int64(keys[i]), companionA[i]/1000, "companion A permuted independently at %d", i)
		assert.Equal(t, float32(keys[i]), companionB[i], "companion B permuted independently at %d", i)
	}
}

func TestSortByKeyStable(t *testing.T) {
	sp := space.NewHost(1)
	defer sp.Close()

	keys := []int32{1, 0, 1, 0}
	order := []int32{0, 1, 2, 3}

	err := SortByKey(sp, keys, View(order))
	require.NoError(t, err)

	assert.Equal(t, []int32{0, 0, 1, 1}, keys)
	assert.Equal(t, []int32{1, 3, 0, 2}, order)
}

func TestSortByKeyEmpty(t *testing.T) {
	sp := space.NewHost(2)
	defer sp.Close()

	// Zero queries must be a no-op, not a hang or a panic.
	err := SortByKey(sp, []int32{})
	require.NoError(t, err)

	err = SortByKey(sp, []float32(nil), View([]int32{}))
	require.NoError(t, err)
}

func TestSortByKeyLengthMismatch(t *testing.T) {
	sp := space.NewHost(2)
	defer sp.Close()

	err := SortByKey(sp, []int32{1, 2}, View([]int32{1}))
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestSortByKeyNoCompanions(t *testing.T) {
	sp := space.NewHost(2)
	defer sp.Close()

	keys := []float32{2.5, 0.5, 1.5}
	require.NoError(t, SortByKey(sp, keys))
	assert.Equal(t, []float32{0.5, 1.5, 2.5}, keys)
}
