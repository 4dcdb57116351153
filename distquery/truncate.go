package distquery

import (
	"context"
	"fmt"

	"github.com/hupe1980/distq/arena"
	"github.com/hupe1980/distq/predicate"
	"github.com/hupe1980/distq/queue"
	"github.com/hupe1980/distq/space"
)

// TruncateResults collapses each query's candidate set down to the query's
// bound, keeping the entries with the smallest distances in ascending
// order. Queries with at most Bound() candidates keep them all (sorted);
// queries with zero candidates keep an empty range.
//
// Selection streams each query's candidates through a bounded max-heap of
// capacity min(count, k), carved from one arena spanning all queries, so no
// lane allocates. Ties on equal distance resolve in an unspecified order.
//
// budget may be nil for unlimited scratch.
func TruncateResults[Q predicate.Bounded](ctx context.Context, sp space.Space, budget *arena.Budget, queries []Q, indices, ranks []int32, distances []float32, offsets Offsets) (newIndices, newRanks []int32, newOffsets Offsets, err error) {
	nQueries := len(queries)
	if len(offsets) != nQueries+1 {
		return nil, nil, nil, preconditionf("distquery: truncate: offset table of length %d for %d queries", len(offsets), nQueries)
	}
	total := int(offsets.Total())
	if len(indices) != total || len(ranks) != total || len(distances) != total {
		return nil, nil, nil, preconditionf("distquery: truncate: companion lengths %d/%d/%d, offsets total %d", len(indices), len(ranks), len(distances), total)
	}

	newOffsets = make(Offsets, nQueries+1)
	sp.ParallelFor(nQueries, func(q int) {
		count := offsets.Count(q)
		k := int32(queries[q].Bound())
		if k < count {
			count = k
		}
		newOffsets[q] = count
	})
	sp.Fence()
	exclusiveScanInPlace(newOffsets)

	kept := int(newOffsets.Total())
	newIndices = make([]int32, kept)
	newRanks = make([]int32, kept)

	scratch, err := arena.New[queue.Item](ctx, budget, kept)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("distquery: truncate: %w", err)
	}
	defer scratch.Release()

	sp.ParallelFor(nQueries, func(q int) {
		lo, hi := offsets.Range(q)
		if hi == lo {
			return
		}
		nlo, nhi := newOffsets.Range(q)
		lane := scratch.Range(nlo, nhi)

		h := queue.New(lane)
		for i := lo; i < hi; i++ {
			h.Offer(queue.Item{Index: indices[i], Rank: ranks[i], Distance: distances[i]})
		}
		// Drain back into the heap's own backing slice: each pop vacates
		// the slot the drained item lands in.
		h.Drain(lane)

		for j := range lane {
			newIndices[nlo+int32(j)] = lane[j].Index
			newRanks[nlo+int32(j)] = lane[j].Rank
		}
	})
	sp.Fence()

	return newIndices, newRanks, newOffsets, nil
}
