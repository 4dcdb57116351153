// Package arena provides round-scoped scratch storage for data-parallel
// kernels. One buffer is allocated per round and sliced into disjoint
// per-query ranges, so no kernel lane ever allocates.
package arena

import (
	"context"
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sync/semaphore"
)

// Budget enforces a hard limit on scratch memory held across concurrent
// rounds. A nil *Budget means unlimited (tracking only no-ops).
type Budget struct {
	sem   *semaphore.Weighted
	limit int64
	held  atomic.Int64
}

// NewBudget creates a budget with a hard limit in bytes.
// limitBytes <= 0 means unlimited.
func NewBudget(limitBytes int64) *Budget {
	b := &Budget{limit: limitBytes}
	if limitBytes > 0 {
		b.sem = semaphore.NewWeighted(limitBytes)
	}
	return b
}

// Held returns the bytes currently checked out.
func (b *Budget) Held() int64 {
	if b == nil {
		return 0
	}
	return b.held.Load()
}

func (b *Budget) acquire(ctx context.Context, n int64) error {
	if b == nil || b.sem == nil {
		if b != nil {
			b.held.Add(n)
		}
		return nil
	}
	if n > b.limit {
		return fmt.Errorf("arena: request of %d bytes exceeds budget of %d", n, b.limit)
	}
	if err := b.sem.Acquire(ctx, n); err != nil {
		return fmt.Errorf("arena: acquire %d bytes: %w", n, err)
	}
	b.held.Add(n)
	return nil
}

func (b *Budget) release(n int64) {
	if b == nil {
		return
	}
	b.held.Add(-n)
	if b.sem != nil {
		b.sem.Release(n)
	}
}

// Arena is one round's scratch buffer. Disjoint sub-slices are carved out
// by offset range; slices from non-overlapping ranges may be used
// concurrently without synchronization.
type Arena[T any] struct {
	buf    []T
	budget *Budget
	bytes  int64
}

// New allocates an arena of n elements, charging the budget if one is set.
// Release must be called when the round completes.
func New[T any](ctx context.Context, budget *Budget, n int) (*Arena[T], error) {
	var zero T
	bytes := int64(n) * int64(unsafe.Sizeof(zero))
	if err := budget.acquire(ctx, bytes); err != nil {
		return nil, err
	}
	return &Arena[T]{
		buf:    make([]T, n),
		budget: budget,
		bytes:  bytes,
	}, nil
}

// Len returns the arena's element count.
func (a *Arena[T]) Len() int { return len(a.buf) }

// Range returns the [lo, hi) sub-slice with its capacity clipped to the
// range, so heap growth inside one lane can never spill into a neighbor's
// slice.
func (a *Arena[T]) Range(lo, hi int32) []T {
	return a.buf[lo:hi:hi]
}

// Release returns the arena's bytes to the budget. The arena must not be
// used afterwards.
func (a *Arena[T]) Release() {
	a.budget.release(a.bytes)
	a.buf = nil
}
