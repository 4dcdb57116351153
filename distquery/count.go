package distquery

import (
	"sync/atomic"

	"github.com/hupe1980/distq/space"
)

// CountResults converts an unordered stream of query ids, one per result
// row with values in [0, nQueries), into an offset table delimiting each
// query's rows. Counting is atomic: rows for the same query may be counted
// from many lanes concurrently.
func CountResults(sp space.Space, nQueries int, queryIDs []int32) (Offsets, error) {
	if nQueries < 0 {
		return nil, preconditionf("distquery: count: negative query count %d", nQueries)
	}
	offsets := make(Offsets, nQueries+1)
	for _, id := range queryIDs {
		if id < 0 || int(id) >= nQueries {
			return nil, preconditionf("distquery: count: query id %d outside batch of %d", id, nQueries)
		}
	}
	sp.ParallelFor(len(queryIDs), func(i int) {
		atomic.AddInt32(&offsets[queryIDs[i]], 1)
	})
	sp.Fence()
	exclusiveScanInPlace(offsets)
	return offsets, nil
}
