package distquery

import (
	"context"
	"fmt"

	"github.com/hupe1980/distq/array"
	"github.com/hupe1980/distq/comms"
	"github.com/hupe1980/distq/space"
)

// ForwardedBatch is a query batch received from peer ranks, together with
// the bookkeeping needed to route results back: for position i, OriginIDs[i]
// is the query's index in the sender's batch and OriginRanks[i] the sending
// rank. The three arrays always have identical length; correspondence is
// positional.
//
// The batch arrives grouped by sending rank (source ranks ascending), which
// is exactly the contiguity ReturnResults later relies on.
type ForwardedBatch[Q any] struct {
	Queries     []Q
	OriginIDs   []int32
	OriginRanks []int32
}

// Len returns the number of forwarded queries.
func (b *ForwardedBatch[Q]) Len() int { return len(b.Queries) }

// ForwardQueries fans a local query batch out to the ranks owning its
// candidates. destRanks holds one destination rank per candidate and
// offsets groups destRanks by query: query q is replicated into every slot
// of [offsets[q], offsets[q+1]).
//
// Collective. A rank with zero exports must still call ForwardQueries so
// its peers observe a completed exchange rather than a mismatched
// collective.
func ForwardQueries[Q any](ctx context.Context, sp space.Space, comm comms.Communicator, queries []Q, destRanks []int32, offsets Offsets) (*ForwardedBatch[Q], error) {
	nQueries := len(queries)
	if len(offsets) != nQueries+1 {
		return nil, preconditionf("distquery: forward: offset table of length %d for %d queries", len(offsets), nQueries)
	}
	nExports := int(offsets.Total())
	if len(destRanks) != nExports {
		return nil, preconditionf("distquery: forward: %d destination ranks for %d exports", len(destRanks), nExports)
	}

	dist := comm.NewDistributor()
	nImports, err := dist.PrepareFromDestinations(ctx, destRanks)
	if err != nil {
		return nil, fmt.Errorf("distquery: forward: prepare: %w", err)
	}

	myRank := int32(comm.Rank())

	// Sender's rank, constant-filled once per destination edge.
	exportRanks := make([]int32, nExports)
	sp.ParallelFor(nExports, func(i int) {
		exportRanks[i] = myRank
	})
	importRanks := make([]int32, nImports)
	if err := Send(ctx, sp, dist, array.FromSlice(sp, exportRanks), array.FromSlice(sp, importRanks)); err != nil {
		return nil, fmt.Errorf("distquery: forward ranks: %w", err)
	}

	// The query value, replicated once per destination edge.
	exportQueries := make([]Q, nExports)
	sp.ParallelFor(nQueries, func(q int) {
		for i := offsets[q]; i < offsets[q+1]; i++ {
			exportQueries[i] = queries[q]
		}
	})
	importQueries := make([]Q, nImports)
	if err := Send(ctx, sp, dist, array.FromSlice(sp, exportQueries), array.FromSlice(sp, importQueries)); err != nil {
		return nil, fmt.Errorf("distquery: forward queries: %w", err)
	}

	// The originating query id, replicated the same way.
	exportIDs := make([]int32, nExports)
	sp.ParallelFor(nQueries, func(q int) {
		for i := offsets[q]; i < offsets[q+1]; i++ {
			exportIDs[i] = int32(q)
		}
	})
	importIDs := make([]int32, nImports)
	if err := Send(ctx, sp, dist, array.FromSlice(sp, exportIDs), array.FromSlice(sp, importIDs)); err != nil {
		return nil, fmt.Errorf("distquery: forward ids: %w", err)
	}

	return &ForwardedBatch[Q]{
		Queries:     importQueries,
		OriginIDs:   importIDs,
		OriginRanks: importRanks,
	}, nil
}
