// Package predicate defines the query kinds the resolution protocol moves
// between ranks. Queries are opaque fixed-size values: copyable and
// trivially relocatable. A query has no identity of its own; its position
// in its batch is its identity.
package predicate

// Point is a position in 3-space.
type Point [3]float32

// Nearest asks for the K data points closest to Origin.
type Nearest struct {
	Origin Point
	K      int32
}

// Bound returns the per-query result bound.
func (n Nearest) Bound() int { return int(n.K) }

// Within asks for every data point inside Radius of Origin.
// Within queries carry no distances and no result bound.
type Within struct {
	Origin Point
	Radius float32
}

// Bounded is implemented by query kinds that cap their result count.
// Result truncation obtains each query's bound through it.
type Bounded interface {
	Bound() int
}
