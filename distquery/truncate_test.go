package distquery

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/distq/arena"
	"github.com/hupe1980/distq/predicate"
	"github.com/hupe1980/distq/space"
)

func nearestBatch(ks ...int32) []predicate.Nearest {
	queries := make([]predicate.Nearest, len(ks))
	for i, k := range ks {
		queries[i] = predicate.Nearest{K: k}
	}
	return queries
}

func TestTruncateResults(t *testing.T) {
	sp := space.NewHost(4)
	defer sp.Close()
	ctx := context.Background()

	// Query 0: 4 candidates, k=2. Query 1: 2 candidates, k=3 (keeps all).
	// Query 2: no candidates.
	queries := nearestBatch(2, 3, 5)
	offsets := Offsets{0, 4, 6, 6}
	indices := []int32{100, 101, 102, 103, 200, 201}
	ranks := []int32{0, 1, 0, 1, 1, 0}
	distances := []float32{4.0, 1.0, 3.0, 2.0, 7.0, 6.0}

	newIndices, newRanks, newOffsets, err := TruncateResults(ctx, sp, nil, queries, indices, ranks, distances, offsets)
	require.NoError(t, err)

	assert.Equal(t, Offsets{0, 2, 4, 4}, newOffsets)
	assert.Equal(t, []int32{101, 103, 201, 200}, newIndices)
	assert.Equal(t, []int32{1, 1, 0, 1}, newRanks)
}

func TestTruncateResultsAgainstFullSort(t *testing.T) {
	sp := space.NewHost(8)
	defer sp.Close()
	ctx := context.Background()

	rng := rand.New(rand.NewSource(99))

	for trial := 0; trial < 20; trial++ {
		nQueries := rng.Intn(30) + 1
		queries := make([]predicate.Nearest, nQueries)
		counts := make([]int32, nQueries)
		for q := range queries {
			queries[q] = predicate.Nearest{K: int32(rng.Intn(8))}
			counts[q] = int32(rng.Intn(25))
		}

		offsets := make(Offsets, nQueries+1)
		var running int32
		for q, c := range counts {
			offsets[q] = running
			running += c
		}
		offsets[nQueries] = running

		total := int(offsets.Total())
		indices := make([]int32, total)
		ranks := make([]int32, total)
		distances := make([]float32, total)
		for i := range indices {
			indices[i] = int32(i)
			ranks[i] = int32(rng.Intn(4))
			// Duplicate distances on purpose; ties may keep either entry.
			distances[i] = float32(rng.Intn(10))
		}

		newIndices, _, newOffsets, err := TruncateResults(ctx, sp, nil, queries, indices, ranks, distances, offsets)
		require.NoError(t, err)

		for q := 0; q < nQueries; q++ {
			lo, hi := offsets.Range(q)
			k := int32(queries[q].Bound())
			wantCount := hi - lo
			if k < wantCount {
				wantCount = k
			}
			require.Equal(t, wantCount, newOffsets.Count(q), "trial %d query %d", trial, q)

			want := append([]float32(nil), distances[lo:hi]...)
			sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

			nlo, _ := newOffsets.Range(q)
			for j := int32(0); j < wantCount; j++ {
				got := distances[indexOf(t, indices, newIndices[nlo+j])]
				assert.Equal(t, want[j], got, "trial %d query %d position %d", trial, q, j)
			}
		}
	}
}

// indexOf maps a kept candidate index back to its row in the input arrays.
func indexOf(t *testing.T, indices []int32, idx int32) int {
	t.Helper()
	for i, v := range indices {
		if v == idx {
			return i
		}
	}
	t.Fatalf("index %d not found", idx)
	return -1
}

func TestTruncateResultsEmptyBatch(t *testing.T) {
	sp := space.NewHost(2)
	defer sp.Close()

	newIndices, newRanks, newOffsets, err := TruncateResults(context.Background(), sp, nil, []predicate.Nearest{}, nil, nil, nil, Offsets{0})
	require.NoError(t, err)
	assert.Empty(t, newIndices)
	assert.Empty(t, newRanks)
	assert.Equal(t, Offsets{0}, newOffsets)
}

func TestTruncateResultsZeroBound(t *testing.T) {
	sp := space.NewHost(2)
	defer sp.Close()

	queries := nearestBatch(0)
	newIndices, _, newOffsets, err := TruncateResults(context.Background(), sp, nil, queries,
		[]int32{1, 2}, []int32{0, 0}, []float32{0.5, 0.25}, Offsets{0, 2})
	require.NoError(t, err)
	assert.Empty(t, newIndices)
	assert.Equal(t, Offsets{0, 0}, newOffsets)
}

func TestTruncateResultsCompanionMismatch(t *testing.T) {
	sp := space.NewHost(2)
	defer sp.Close()

	_, _, _, err := TruncateResults(context.Background(), sp, nil, nearestBatch(1),
		[]int32{1}, []int32{0}, nil, Offsets{0, 1})
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestTruncateResultsBudget(t *testing.T) {
	sp := space.NewHost(2)
	defer sp.Close()

	// A budget too small for the scratch arena fails the round up front.
	budget := arena.NewBudget(8)
	queries := nearestBatch(4)
	_, _, _, err := TruncateResults(context.Background(), sp, budget, queries,
		[]int32{1, 2, 3, 4}, []int32{0, 0, 0, 0}, []float32{4, 3, 2, 1}, Offsets{0, 4})
	require.Error(t, err)
	assert.Equal(t, int64(0), budget.Held())
}
