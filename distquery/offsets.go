// Package distquery implements the cross-process query-resolution protocol
// of a spatially partitioned search index: forwarding unresolved queries to
// the ranks that own their candidates, moving bulk typed data between
// ranks, reassembling per-query result sets at the origin rank, and
// truncating oversized result sets to each query's bound.
//
// Everything here is transient: arrays are created per round and replaced,
// not mutated, as they move through the pipeline. Each transformation
// returns fresh arrays and the inputs are logically dead afterwards.
package distquery

import "fmt"

// Offsets is a CSR-style offset table: for a batch of n groups it has n+1
// entries and group g's rows occupy [Offsets[g], Offsets[g+1]) of the
// parallel flat arrays. Offsets[0] is always 0 and the last entry is the
// total row count.
type Offsets []int32

// NumGroups returns the number of groups the table delimits.
func (o Offsets) NumGroups() int { return len(o) - 1 }

// Total returns the total row count across all groups.
func (o Offsets) Total() int32 {
	if len(o) == 0 {
		return 0
	}
	return o[len(o)-1]
}

// Count returns the number of rows in group g.
func (o Offsets) Count(g int) int32 { return o[g+1] - o[g] }

// Range returns group g's half-open row range.
func (o Offsets) Range(g int) (lo, hi int32) { return o[g], o[g+1] }

// Validate checks the offset-table invariants.
func (o Offsets) Validate() error {
	if len(o) == 0 {
		return fmt.Errorf("distquery: empty offset table")
	}
	if o[0] != 0 {
		return fmt.Errorf("distquery: offset table starts at %d, want 0", o[0])
	}
	for g := 1; g < len(o); g++ {
		if o[g] < o[g-1] {
			return fmt.Errorf("distquery: offset table decreases at entry %d (%d -> %d)", g, o[g-1], o[g])
		}
	}
	return nil
}

// exclusiveScanInPlace converts per-group counts stored in o[0..n) into an
// exclusive prefix sum seeded with 0; o[n] ends up holding the total.
func exclusiveScanInPlace(o []int32) {
	var running int32
	for i := range o {
		c := o[i]
		o[i] = running
		running += c
	}
}
