package space

// Offload is an execution space whose memory the transport layer cannot
// address directly, forcing the transfer layer down its host-staging path.
//
// Kernels still run on the host worker pool; only the memory-visibility
// contract changes. This mirrors deployments where the accelerator and the
// message-passing layer do not interoperate, and lets tests exercise the
// staging code without real device hardware.
type Offload struct {
	Host
}

// NewOffload creates an offload space with numWorkers kernel workers.
func NewOffload(numWorkers int) *Offload {
	return &Offload{Host: *NewHost(numWorkers)}
}

// HostVisible reports false: buffers in this space must be staged through
// host memory before they can go on the wire.
func (o *Offload) HostVisible() bool { return false }

// Label identifies the space in diagnostics.
func (o *Offload) Label() string { return "offload" }
