package space

import (
	"runtime"
	"sync"
)

// minParallelLanes is the smallest range worth fanning out to workers.
// Below this, scheduling overhead dwarfs the kernel body.
const minParallelLanes = 256

// Host is a CPU execution space backed by a fixed worker pool.
//
// Recommended sizing:
//   - numWorkers = runtime.GOMAXPROCS(0) for CPU-bound kernels
//   - smaller pools when several spaces share a machine
type Host struct {
	pool *workerPool
}

// NewHost creates a host space with numWorkers goroutines.
// numWorkers <= 0 defaults to GOMAXPROCS.
func NewHost(numWorkers int) *Host {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &Host{pool: newWorkerPool(numWorkers)}
}

// ParallelFor runs fn over [0, n), chunked across the worker pool.
// Small ranges run inline on the calling goroutine.
func (h *Host) ParallelFor(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if n < minParallelLanes || h.pool.numWorkers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	numChunks := h.pool.numWorkers
	chunk := (n + numChunks - 1) / numChunks

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		h.pool.submit(func(lo, hi int) func() {
			return func() {
				defer wg.Done()
				for i := lo; i < hi; i++ {
					fn(i)
				}
			}
		}(lo, hi))
	}
	wg.Wait()
}

// Fence is a no-op: ParallelFor already blocks until all lanes complete.
func (h *Host) Fence() {}

// HostVisible reports true: host memory is directly addressable by the
// transport.
func (h *Host) HostVisible() bool { return true }

// Label identifies the space in diagnostics.
func (h *Host) Label() string { return "host" }

// Close shuts down the worker pool. The space must not be used afterwards.
func (h *Host) Close() {
	h.pool.close()
}

// workerPool manages a fixed pool of goroutines for kernel chunks.
// A fixed pool avoids spawning thousands of goroutines per round under
// query load.
type workerPool struct {
	numWorkers int
	workCh     chan func()
	stopCh     chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

func newWorkerPool(numWorkers int) *workerPool {
	wp := &workerPool{
		numWorkers: numWorkers,
		workCh:     make(chan func(), numWorkers*2),
		stopCh:     make(chan struct{}),
	}
	wp.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go wp.worker()
	}
	return wp
}

func (wp *workerPool) worker() {
	defer wp.wg.Done()
	for {
		select {
		case <-wp.stopCh:
			// Drain remaining work before exiting so no chunk is lost.
			for {
				select {
				case task := <-wp.workCh:
					task()
				default:
					return
				}
			}
		case task := <-wp.workCh:
			task()
		}
	}
}

// submit enqueues a chunk. If the queue is full the chunk runs inline,
// which keeps ParallelFor deadlock-free when called from a worker.
func (wp *workerPool) submit(task func()) {
	select {
	case wp.workCh <- task:
	default:
		task()
	}
}

func (wp *workerPool) close() {
	wp.closeOnce.Do(func() {
		close(wp.stopCh)
		wp.wg.Wait()
	})
}
