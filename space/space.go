// Package space models the execution resource that runs data-parallel
// kernels. Every bulk operation takes a Space explicitly so that code is
// portable between plain host execution and accelerator-resident execution
// without branching on global state; the only place the distinction matters
// is where the transport layer does or does not need host staging.
package space

// Space runs data-parallel kernels and doubles as a memory-space
// capability for buffers allocated against it.
type Space interface {
	// ParallelFor runs fn for every i in [0, n). Lanes are independent and
	// may execute in any order; ParallelFor returns only after all lanes
	// completed, giving barrier semantics between steps.
	ParallelFor(n int, fn func(i int))

	// Fence blocks until all work previously launched on the space is
	// visible. Host spaces are synchronous, so this is a no-op there; it is
	// still called before every transport hand-off so offload spaces can
	// flush.
	Fence()

	// HostVisible reports whether the transport layer can address memory
	// allocated against this space directly.
	HostVisible() bool

	// Label identifies the space in diagnostics.
	Label() string
}
