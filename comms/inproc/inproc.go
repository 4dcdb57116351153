// Package inproc provides a channel-based implementation of the comms
// contracts for a group of ranks living in one OS process. It is the
// transport used by tests, examples, and single-node multi-worker
// deployments.
//
// Frames between ranks go through per-pair rendezvous channels, so the
// collective calling discipline of comms.Distributor is enforced naturally:
// a rank that skips an exchange leaves its peers blocked, exactly as a
// mismatched collective would on a real network.
//
// Features beyond plain delivery:
//   - Optional LZ4 compression of frames above a size threshold
//   - Optional per-rank bandwidth throttle for backpressure testing
//   - Optional zstd-compressed trace log of every frame for postmortem replay
package inproc

import (
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/hupe1980/distq/comms"
)

// Options configures a Hub.
type Options struct {
	// CompressThreshold is the frame size in bytes above which frames are
	// LZ4-compressed. 0 disables compression.
	CompressThreshold int

	// BandwidthBytesPerSec throttles each rank's send side.
	// 0 means unlimited.
	BandwidthBytesPerSec int

	// TracePath, when non-empty, enables a zstd-compressed append-only log
	// of every exchanged frame at the given path.
	TracePath string
}

// DefaultOptions are the options used when none are supplied.
var DefaultOptions = Options{}

// WithCompressThreshold enables LZ4 frame compression above n bytes.
func WithCompressThreshold(n int) func(o *Options) {
	return func(o *Options) { o.CompressThreshold = n }
}

// WithBandwidthLimit throttles each rank's sends to n bytes per second.
func WithBandwidthLimit(n int) func(o *Options) {
	return func(o *Options) { o.BandwidthBytesPerSec = n }
}

// WithTraceLog records every exchanged frame to a zstd-compressed log.
func WithTraceLog(path string) func(o *Options) {
	return func(o *Options) { o.TracePath = path }
}

// frame is one rank-to-rank transfer within a single collective call.
type frame struct {
	rows int
	data []byte
}

// Hub connects size ranks. Create one Hub, then hand each worker its
// endpoint via Communicator.
type Hub struct {
	size    int
	opts    Options
	countCh [][]chan int   // countCh[dst][src], capacity 1
	frameCh [][]chan frame // frameCh[dst][src], capacity 1
	trace   *traceLog

	closeOnce sync.Once
	closeErr  error
}

// NewHub creates a hub for a group of size ranks.
func NewHub(size int, optFns ...func(o *Options)) (*Hub, error) {
	if size <= 0 {
		return nil, fmt.Errorf("inproc: group size must be positive, got %d", size)
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &Hub{
		size:    size,
		opts:    opts,
		countCh: make([][]chan int, size),
		frameCh: make([][]chan frame, size),
	}
	for dst := 0; dst < size; dst++ {
		h.countCh[dst] = make([]chan int, size)
		h.frameCh[dst] = make([]chan frame, size)
		for src := 0; src < size; src++ {
			h.countCh[dst][src] = make(chan int, 1)
			h.frameCh[dst][src] = make(chan frame, 1)
		}
	}

	if opts.TracePath != "" {
		trace, err := newTraceLog(opts.TracePath)
		if err != nil {
			return nil, fmt.Errorf("inproc: open trace log: %w", err)
		}
		h.trace = trace
	}

	return h, nil
}

// Size returns the number of ranks in the group.
func (h *Hub) Size() int { return h.size }

// Communicator returns the endpoint for the given rank.
// Each rank must be driven by exactly one goroutine at a time.
func (h *Hub) Communicator(rank int) (comms.Communicator, error) {
	if rank < 0 || rank >= h.size {
		return nil, fmt.Errorf("inproc: rank %d outside group of size %d", rank, h.size)
	}
	ep := &endpoint{hub: h, rank: rank}
	if h.opts.BandwidthBytesPerSec > 0 {
		ep.limiter = rate.NewLimiter(rate.Limit(h.opts.BandwidthBytesPerSec), h.opts.BandwidthBytesPerSec)
	}
	return ep, nil
}

// Close flushes and closes the trace log, if any.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		if h.trace != nil {
			h.closeErr = h.trace.Close()
		}
	})
	return h.closeErr
}

// endpoint is one rank's view of the hub.
type endpoint struct {
	hub     *Hub
	rank    int
	limiter *rate.Limiter
}

// Rank returns this endpoint's rank.
func (ep *endpoint) Rank() int { return ep.rank }

// Size returns the group size.
func (ep *endpoint) Size() int { return ep.hub.size }

// NewDistributor creates a fresh exchange plan holder.
func (ep *endpoint) NewDistributor() comms.Distributor {
	return &distributor{ep: ep}
}
