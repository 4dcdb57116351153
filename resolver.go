package distq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/distq/comms"
	"github.com/hupe1980/distq/distquery"
	"github.com/hupe1980/distq/predicate"
	"github.com/hupe1980/distq/space"
)

// ErrMissingDistances is returned when a nearest round's local search
// produced no distances; truncation cannot rank candidates without them.
var ErrMissingDistances = errors.New("local search returned no distances")

// LocalSearch computes this rank's results for a batch of forwarded
// queries: a flat payload grouped by forwarded query through the returned
// offset table, plus per-row distances for query kinds that carry them
// (nil otherwise). The grouping must follow the batch's order so that
// same-origin results stay contiguous.
//
// Whether distances are returned must be uniform across ranks within one
// round; a rank diverging on it breaks the round's collective call
// sequence.
type LocalSearch[Q, R any] func(ctx context.Context, batch *distquery.ForwardedBatch[Q]) (payload []R, distances []float32, offsets distquery.Offsets, err error)

// Resolver runs full query-resolution rounds over a fixed communicator and
// execution space. It is safe to reuse across rounds; a single round's
// calls are collective across all ranks of the group.
type Resolver[Q, R any] struct {
	comm    comms.Communicator
	space   space.Space
	logger  *Logger
	metrics MetricsCollector
	opts    Options
}

// New creates a Resolver for the given communicator and execution space.
func New[Q, R any](comm comms.Communicator, sp space.Space, optFns ...func(o *Options)) *Resolver[Q, R] {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetrics{}
	}
	return &Resolver[Q, R]{
		comm:    comm,
		space:   sp,
		logger:  opts.Logger.WithRank(comm.Rank()),
		metrics: opts.Metrics,
		opts:    opts,
	}
}

// Resolve runs one round: forward unresolved queries to their candidate
// owners, run the caller's local search over the forwarded batch, ship
// results back to their origins, then group them per original query and
// order the groups canonically.
//
// destRanks holds one destination rank per candidate; offsets groups
// destRanks by query. The returned results are sorted by origin query id
// with all companion arrays permuted together, and the returned offset
// table delimits each original query's rows.
//
// Collective: every rank must call Resolve once per round, zero-work ranks
// included.
func (r *Resolver[Q, R]) Resolve(ctx context.Context, queries []Q, destRanks []int32, offsets distquery.Offsets, search LocalSearch[Q, R]) (res *distquery.ReturnedResults[R], resOffsets distquery.Offsets, err error) {
	start := time.Now()
	defer func() {
		r.metrics.RecordRound(len(queries), time.Since(start), err)
	}()

	if search == nil {
		return nil, nil, fmt.Errorf("distq: resolve: nil local search")
	}

	forwardStart := time.Now()
	fwd, err := distquery.ForwardQueries(ctx, r.space, r.comm, queries, destRanks, offsets)
	if err != nil {
		return nil, nil, fmt.Errorf("distq: resolve: %w", err)
	}
	r.metrics.RecordForward(len(destRanks), fwd.Len(), time.Since(forwardStart))
	r.logger.DebugContext(ctx, "queries forwarded",
		"queries", len(queries),
		"exports", len(destRanks),
		"imports", fwd.Len(),
	)

	payload, distances, searchOffsets, err := search(ctx, fwd)
	if err != nil {
		return nil, nil, fmt.Errorf("distq: resolve: local search: %w", err)
	}
	if searchOffsets.NumGroups() != fwd.Len() {
		return nil, nil, fmt.Errorf("distq: resolve: local search grouped %d queries, batch has %d", searchOffsets.NumGroups(), fwd.Len())
	}

	returnStart := time.Now()
	ret, err := distquery.ReturnResults(ctx, r.space, r.comm, payload, searchOffsets, fwd.OriginRanks, fwd.OriginIDs, distances)
	if err != nil {
		return nil, nil, fmt.Errorf("distq: resolve: %w", err)
	}
	r.metrics.RecordReturn(len(payload), ret.Len(), time.Since(returnStart))
	r.logger.DebugContext(ctx, "results returned",
		"exports", len(payload),
		"imports", ret.Len(),
	)

	counted, err := distquery.CountResults(r.space, len(queries), ret.OriginIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("distq: resolve: %w", err)
	}

	companions := []distquery.Permutable{
		distquery.View(ret.Payload),
		distquery.View(ret.SourceRanks),
	}
	if ret.Distances != nil {
		companions = append(companions, distquery.View(ret.Distances))
	}
	if err := distquery.SortByKey(r.space, ret.OriginIDs, companions...); err != nil {
		return nil, nil, fmt.Errorf("distq: resolve: %w", err)
	}

	return ret, counted, nil
}

// NearestResult is one rank's share of a nearest round: per original query,
// at most Bound() candidates ordered by ascending distance, delimited by
// Offsets.
type NearestResult struct {
	Indices []int32
	Ranks   []int32
	Offsets distquery.Offsets
}

// NearestResolver runs nearest-neighbor rounds, which additionally truncate
// every query's merged multi-rank result set down to the query's bound.
type NearestResolver[Q predicate.Bounded] struct {
	*Resolver[Q, int32]
}

// NewNearest creates a resolver for nearest-neighbor queries. The result
// payload is the candidate's global index; distances are mandatory.
func NewNearest[Q predicate.Bounded](comm comms.Communicator, sp space.Space, optFns ...func(o *Options)) *NearestResolver[Q] {
	return &NearestResolver[Q]{Resolver: New[Q, int32](comm, sp, optFns...)}
}

// Resolve runs one nearest round: the base pipeline followed by per-query
// truncation to the k smallest-distance candidates, ascending.
func (r *NearestResolver[Q]) Resolve(ctx context.Context, queries []Q, destRanks []int32, offsets distquery.Offsets, search LocalSearch[Q, int32]) (*NearestResult, error) {
	ret, counted, err := r.Resolver.Resolve(ctx, queries, destRanks, offsets, search)
	if err != nil {
		return nil, err
	}
	if ret.Distances == nil && ret.Len() > 0 {
		return nil, fmt.Errorf("distq: resolve nearest: %w", ErrMissingDistances)
	}

	truncateStart := time.Now()
	indices, ranks, truncated, err := distquery.TruncateResults(ctx, r.space, r.opts.Budget, queries, ret.Payload, ret.SourceRanks, ret.Distances, counted)
	if err != nil {
		return nil, fmt.Errorf("distq: resolve nearest: %w", err)
	}
	r.metrics.RecordTruncate(int(counted.Total()), int(truncated.Total()), time.Since(truncateStart))
	r.logger.DebugContext(ctx, "results truncated",
		"before", counted.Total(),
		"after", truncated.Total(),
	)

	return &NearestResult{
		Indices: indices,
		Ranks:   ranks,
		Offsets: truncated,
	}, nil
}
