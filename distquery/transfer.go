package distquery

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/hupe1980/distq/array"
	"github.com/hupe1980/distq/comms"
	"github.com/hupe1980/distq/space"
)

// Send moves every exported row of exports to the destination assigned by
// the distributor's plan, for all ranks simultaneously, writing received
// rows into imports. Collective: every rank must call Send with the same
// prepared distributor, zero-row ranks included.
//
// Preconditions, checked before any communication so a malformed call
// cannot hang the group: exports must hold exactly the plan's send length,
// imports the plan's receive length, and all trailing packet extents must
// match between the two arrays.
//
// Staging: buffers whose memory the transport cannot address, and import
// arrays whose layout differs from the wire's dense row-major layout, go
// through a contiguous host staging copy; 1-D contiguous host arrays are
// exchanged in place.
func Send[T any](ctx context.Context, sp space.Space, d comms.Distributor, exports, imports *array.Array[T]) error {
	if exports.Rows() != d.TotalSendLength() {
		return &ExtentError{Op: "distquery: send", Dim: 0, Export: exports.Rows(), Import: d.TotalSendLength()}
	}
	if imports.Rows() != d.TotalReceiveLength() {
		return &ExtentError{Op: "distquery: receive", Dim: 0, Export: imports.Rows(), Import: d.TotalReceiveLength()}
	}
	for dim := 1; dim <= array.MaxTrailingDims; dim++ {
		if exports.Extent(dim) != imports.Extent(dim) {
			return &ExtentError{Op: "distquery: send", Dim: dim, Export: exports.Extent(dim), Import: imports.Extent(dim)}
		}
	}

	packet := exports.PacketSize()
	if packet == 0 {
		return preconditionf("distquery: send: zero-sized packet")
	}
	var zero T
	packetBytes := packet * int(unsafe.Sizeof(zero))

	// All writers of the export buffer must have completed before the
	// transport reads it.
	sp.Fence()

	wireOut := exports.Data()
	if !exports.Contiguous() || !exports.Memory().HostVisible() {
		wireOut = make([]T, exports.Rows()*packet)
		sp.ParallelFor(exports.Rows(), func(i int) {
			copy(wireOut[i*packet:(i+1)*packet], exports.Row(i))
		})
		sp.Fence()
	}

	direct := imports.WireDirect()
	wireIn := imports.Data()
	if !direct {
		// The destination's layout or memory space differs from the wire
		// layout, so the exchange lands in a staging buffer first.
		wireIn = make([]T, imports.Rows()*packet)
	}

	if err := d.Exchange(ctx, bytesOf(wireOut), packetBytes, bytesOf(wireIn)); err != nil {
		return fmt.Errorf("distquery: exchange: %w", err)
	}

	if !direct {
		sp.ParallelFor(imports.Rows(), func(i int) {
			copy(imports.Row(i), wireIn[i*packet:(i+1)*packet])
		})
		sp.Fence()
	}
	return nil
}

// bytesOf reinterprets a slice of flat fixed-size values as raw bytes.
// T must not contain pointers, maps, slices, or strings.
func bytesOf[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}
