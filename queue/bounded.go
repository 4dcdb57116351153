// Package queue provides a fixed-capacity priority structure for bounded
// top-k selection inside data-parallel kernels.
package queue

// Item is an entry in the bounded heap: a candidate's global index and
// owning rank, prioritized by distance.
type Item struct {
	Index    int32   // Index is the candidate's global index.
	Rank     int32   // Rank is the process that owns the candidate.
	Distance float32 // Distance is the priority of the item in the queue.
}

// Bounded is a max-heap of fixed capacity over caller-provided scratch
// storage. The top is always the current worst (largest distance) of the
// retained set, so streaming candidates through Offer keeps the k smallest.
//
// Bounded never allocates: it operates entirely on the scratch slice handed
// to New, which makes it safe to use from thousands of independent kernel
// lanes each owning a disjoint slice of one shared arena.
type Bounded struct {
	items []Item // len is the current size, cap is the capacity
}

// New creates a bounded heap over scratch. The heap's capacity is
// cap(scratch); any existing contents are discarded.
func New(scratch []Item) *Bounded {
	return &Bounded{items: scratch[:0]}
}

// Len returns the number of retained items.
func (b *Bounded) Len() int { return len(b.items) }

// Cap returns the heap's fixed capacity.
func (b *Bounded) Cap() int { return cap(b.items) }

// Top returns the worst retained item. It must not be called on an empty heap.
func (b *Bounded) Top() Item { return b.items[0] }

// Offer inserts it when the heap has spare capacity; once full, it replaces
// the current worst only if the new item's distance is smaller. Returns
// whether the item was retained.
func (b *Bounded) Offer(it Item) bool {
	if cap(b.items) == 0 {
		return false
	}
	if len(b.items) < cap(b.items) {
		b.items = append(b.items, it)
		b.siftUp(len(b.items) - 1)
		return true
	}
	if it.Distance >= b.items[0].Distance {
		return false
	}
	b.items[0] = it
	b.siftDown(0)
	return true
}

// Pop removes and returns the worst retained item.
// It must not be called on an empty heap.
func (b *Bounded) Pop() Item {
	top := b.items[0]
	last := len(b.items) - 1
	b.items[0] = b.items[last]
	b.items = b.items[:last]
	if last > 0 {
		b.siftDown(0)
	}
	return top
}

// Drain empties the heap into dst in ascending distance order and returns
// the number of items written. dst must have room for Len() items.
//
// Draining pops worst-first, so items are written back-to-front; dst ends up
// sorted best-first, which is the canonical order for truncated result sets.
func (b *Bounded) Drain(dst []Item) int {
	n := len(b.items)
	for i := n - 1; i >= 0; i-- {
		dst[i] = b.Pop()
	}
	return n
}

func (b *Bounded) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if b.items[parent].Distance >= b.items[i].Distance {
			break
		}
		b.items[parent], b.items[i] = b.items[i], b.items[parent]
		i = parent
	}
}

func (b *Bounded) siftDown(i int) {
	n := len(b.items)
	for {
		largest := i
		left := 2*i + 1
		right := 2*i + 2

		if left < n && b.items[left].Distance > b.items[largest].Distance {
			largest = left
		}
		if right < n && b.items[right].Distance > b.items[largest].Distance {
			largest = right
		}
		if largest == i {
			return
		}
		b.items[i], b.items[largest] = b.items[largest], b.items[i]
		i = largest
	}
}
