// Package array provides shaped, typed buffers for bulk data movement.
//
// An Array wraps a flat slice together with a logical shape: the leading
// extent counts rows (one row per exported or imported element) and up to
// seven trailing extents describe the per-row packet. Rows may be strided,
// in which case the backing slice is larger than rows*packet and a
// contiguous staging copy is required before the buffer can go on the wire.
package array

import "fmt"

// MaxTrailingDims is the maximum number of trailing packet dimensions.
const MaxTrailingDims = 7

// Memory describes where an Array's backing storage lives.
// The transport layer can only address host-visible memory directly;
// everything else is staged through a host copy.
type Memory interface {
	// HostVisible reports whether the transport can read and write this
	// memory without staging.
	HostVisible() bool

	// Label identifies the memory space in diagnostics.
	Label() string
}

// Array is a typed buffer with a logical shape [rows, d1..d7].
//
// The element type T must be a flat, fixed-size value type (no pointers,
// maps, or slices) so that rows can be moved as raw bytes.
type Array[T any] struct {
	data      []T
	shape     []int
	packet    int // product of trailing extents
	rowStride int // elements between consecutive row starts
	mem       Memory
}

// New allocates a contiguous Array with the given shape.
// The shape must have between 1 and 1+MaxTrailingDims extents,
// all non-negative.
func New[T any](mem Memory, shape ...int) (*Array[T], error) {
	packet, err := validateShape(shape)
	if err != nil {
		return nil, err
	}
	return &Array[T]{
		data:      make([]T, shape[0]*packet),
		shape:     append([]int(nil), shape...),
		packet:    packet,
		rowStride: packet,
		mem:       mem,
	}, nil
}

// FromSlice wraps an existing contiguous slice as a 1-D Array of len(data) rows.
func FromSlice[T any](mem Memory, data []T) *Array[T] {
	return &Array[T]{
		data:      data,
		shape:     []int{len(data)},
		packet:    1,
		rowStride: 1,
		mem:       mem,
	}
}

// NewStrided allocates an Array whose rows are rowStride elements apart.
// rowStride must be at least the packet size; the slack between packet and
// stride is padding that never goes on the wire.
func NewStrided[T any](mem Memory, rowStride int, shape ...int) (*Array[T], error) {
	packet, err := validateShape(shape)
	if err != nil {
		return nil, err
	}
	if rowStride < packet {
		return nil, fmt.Errorf("array: row stride %d smaller than packet size %d", rowStride, packet)
	}
	return &Array[T]{
		data:      make([]T, shape[0]*rowStride),
		shape:     append([]int(nil), shape...),
		packet:    packet,
		rowStride: rowStride,
		mem:       mem,
	}, nil
}

func validateShape(shape []int) (int, error) {
	if len(shape) == 0 || len(shape) > 1+MaxTrailingDims {
		return 0, fmt.Errorf("array: shape must have 1 to %d extents, got %d", 1+MaxTrailingDims, len(shape))
	}
	packet := 1
	for i, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("array: negative extent %d at dimension %d", d, i)
		}
		if i > 0 {
			packet *= d
		}
	}
	return packet, nil
}

// Rows returns the leading extent.
func (a *Array[T]) Rows() int { return a.shape[0] }

// PacketSize returns the number of elements in one row.
func (a *Array[T]) PacketSize() int { return a.packet }

// Shape returns the full shape. The returned slice must not be modified.
func (a *Array[T]) Shape() []int { return a.shape }

// Extent returns the extent of dimension d, or 1 beyond the shape's rank.
// Trailing extents beyond the declared shape compare equal between any two
// arrays, matching the transfer-layer extent check.
func (a *Array[T]) Extent(d int) int {
	if d >= len(a.shape) {
		return 1
	}
	return a.shape[d]
}

// Data returns the backing slice, including any stride padding.
func (a *Array[T]) Data() []T { return a.data }

// Row returns row i as a packet-sized sub-slice of the backing storage.
func (a *Array[T]) Row(i int) []T {
	lo := i * a.rowStride
	return a.data[lo : lo+a.packet]
}

// Memory returns the memory space the backing storage lives in.
func (a *Array[T]) Memory() Memory { return a.mem }

// Contiguous reports whether rows are densely packed (no stride padding).
func (a *Array[T]) Contiguous() bool { return a.rowStride == a.packet }

// WireDirect reports whether the transport can exchange straight into this
// array: a 1-D contiguous layout in host-visible memory. Anything else needs
// a staging buffer because the destination's layout or memory space differs
// from the wire layout.
func (a *Array[T]) WireDirect() bool {
	return len(a.shape) == 1 && a.Contiguous() && a.mem.HostVisible()
}
