package distquery

import (
	"context"
	"fmt"

	"github.com/hupe1980/distq/array"
	"github.com/hupe1980/distq/comms"
	"github.com/hupe1980/distq/space"
)

// ReturnedResults holds one rank's share of a round's results after they
// travelled back to their originating ranks. All arrays have identical
// length and positional correspondence; Distances is nil when the round
// carried none.
type ReturnedResults[R any] struct {
	Payload     []R
	OriginIDs   []int32
	SourceRanks []int32
	Distances   []float32
}

// Len returns the number of returned result rows.
func (r *ReturnedResults[R]) Len() int { return len(r.Payload) }

// ReturnResults ships results computed against a forwarded batch back to
// their originating ranks. offsets groups the flat payload by forwarded
// query; groupRanks and groupIDs are the forwarded batch's origin ranks and
// origin ids, one per group. distances is optional (nil for query kinds
// that carry none) and travels under the same plan so positional
// correspondence survives the transfer. Whether distances are passed must
// be uniform across all ranks of a round: a diverging rank issues a
// different collective sequence and deadlocks the group.
//
// Results destined for the same rank must form contiguous groups in
// offsets; the routing step does not re-sort by rank, and violating this
// silently corrupts the result-to-origin mapping. Batches produced by
// ForwardQueries satisfy it by construction.
//
// Collective, zero-export ranks included.
func ReturnResults[R any](ctx context.Context, sp space.Space, comm comms.Communicator, payload []R, offsets Offsets, groupRanks, groupIDs []int32, distances []float32) (*ReturnedResults[R], error) {
	nGroups := offsets.NumGroups()
	if len(groupRanks) != nGroups || len(groupIDs) != nGroups {
		return nil, preconditionf("distquery: return: %d groups, %d ranks, %d ids", nGroups, len(groupRanks), len(groupIDs))
	}
	nExports := int(offsets.Total())
	if len(payload) != nExports {
		return nil, preconditionf("distquery: return: payload of %d rows, offsets total %d", len(payload), nExports)
	}
	if distances != nil && len(distances) != nExports {
		return nil, preconditionf("distquery: return: distances of %d rows, offsets total %d", len(distances), nExports)
	}

	dist := comm.NewDistributor()
	nImports, err := dist.PrepareFromGroups(ctx, groupRanks, offsets)
	if err != nil {
		return nil, fmt.Errorf("distquery: return: prepare: %w", err)
	}

	myRank := int32(comm.Rank())

	exportRanks := make([]int32, nExports)
	sp.ParallelFor(nExports, func(i int) {
		exportRanks[i] = myRank
	})
	importRanks := make([]int32, nImports)
	if err := Send(ctx, sp, dist, array.FromSlice(sp, exportRanks), array.FromSlice(sp, importRanks)); err != nil {
		return nil, fmt.Errorf("distquery: return ranks: %w", err)
	}

	exportIDs := make([]int32, nExports)
	sp.ParallelFor(nGroups, func(g int) {
		for i := offsets[g]; i < offsets[g+1]; i++ {
			exportIDs[i] = groupIDs[g]
		}
	})
	importIDs := make([]int32, nImports)
	if err := Send(ctx, sp, dist, array.FromSlice(sp, exportIDs), array.FromSlice(sp, importIDs)); err != nil {
		return nil, fmt.Errorf("distquery: return ids: %w", err)
	}

	importPayload := make([]R, nImports)
	if err := Send(ctx, sp, dist, array.FromSlice(sp, payload), array.FromSlice(sp, importPayload)); err != nil {
		return nil, fmt.Errorf("distquery: return payload: %w", err)
	}

	var importDistances []float32
	if distances != nil {
		importDistances = make([]float32, nImports)
		if err := Send(ctx, sp, dist, array.FromSlice(sp, distances), array.FromSlice(sp, importDistances)); err != nil {
			return nil, fmt.Errorf("distquery: return distances: %w", err)
		}
	}

	return &ReturnedResults[R]{
		Payload:     importPayload,
		OriginIDs:   importIDs,
		SourceRanks: importRanks,
		Distances:   importDistances,
	}, nil
}
