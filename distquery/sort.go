package distquery

import (
	"cmp"
	"slices"

	"github.com/hupe1980/distq/space"
)

// Permutable is a type-erased view of a companion array, so one permutation
// can be applied uniformly to any number of arrays of any element type.
type Permutable interface {
	// Len returns the array's length.
	Len() int

	// Permute reorders the array in place so position i receives the
	// element previously at position perm[i].
	Permute(sp space.Space, perm []int32)
}

type sliceView[T any] struct {
	s []T
}

// View adapts a typed slice to the Permutable interface.
func View[T any](s []T) Permutable { return sliceView[T]{s: s} }

func (v sliceView[T]) Len() int { return len(v.s) }

func (v sliceView[T]) Permute(sp space.Space, perm []int32) {
	tmp := make([]T, len(v.s))
	sp.ParallelFor(len(perm), func(i int) {
		tmp[i] = v.s[perm[i]]
	})
	sp.Fence()
	copy(v.s, tmp)
}

// SortByKey reorders keys into non-decreasing order and applies the
// identical permutation to every companion array, preserving positional
// correspondence: after sorting, index i in every array still describes the
// same logical candidate.
//
// The permutation is computed from an immutable copy of the keys, then
// applied uniformly; companion arrays are never permuted independently.
// The sort is stable. Zero-length input is a no-op.
func SortByKey[K cmp.Ordered](sp space.Space, keys []K, companions ...Permutable) error {
	n := len(keys)
	if n == 0 {
		return nil
	}
	for i, c := range companions {
		if c.Len() != n {
			return preconditionf("distquery: sort: companion %d has length %d, keys have %d", i, c.Len(), n)
		}
	}

	// Sorting consumes the key order, so the permutation comes from a copy.
	keysClone := append([]K(nil), keys...)
	perm := make([]int32, n)
	sp.ParallelFor(n, func(i int) {
		perm[i] = int32(i)
	})
	sp.Fence()
	slices.SortStableFunc(perm, func(a, b int32) int {
		return cmp.Compare(keysClone[a], keysClone[b])
	})

	View(keys).Permute(sp, perm)
	for _, c := range companions {
		c.Permute(sp, perm)
	}
	return nil
}
