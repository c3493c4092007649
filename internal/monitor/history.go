package monitor

// Default capacities for the monitor's history buffers.
const (
	DefaultConnectionHistory = 1000
	DefaultSnapshotHistory   = 500
	DefaultErrorHistory      = 200
	DefaultSampleHistory     = 100
)

// Ring is a fixed-capacity FIFO buffer. Once full, each Push evicts the
// oldest entry. Ring is not safe for concurrent use; the Aggregator guards
// its rings with its own mutex.
type Ring[T any] struct {
	data  []T
	head  int
	count int
	size  int
}

// NewRing creates a ring holding at most size items. A non-positive size
// is treated as 1.
func NewRing[T any](size int) *Ring[T] {
	if size <= 0 {
		size = 1
	}
	return &Ring[T]{
		data: make([]T, size),
		size: size,
	}
}

// Push appends v at the newest end, evicting the oldest item when full.
func (r *Ring[T]) Push(v T) {
	r.data[r.head] = v
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// Len reports current occupancy.
func (r *Ring[T]) Len() int { return r.count }

// Cap reports the fixed capacity.
func (r *Ring[T]) Cap() int { return r.size }

// Last returns up to n most recent items, oldest first.
func (r *Ring[T]) Last(n int) []T {
	if n <= 0 || r.count == 0 {
		return nil
	}
	if n > r.count {
		n = r.count
	}

	out := make([]T, n)
	// head is the next write slot, so the newest item sits at head-1.
	start := (r.head - n + r.size) % r.size
	for i := 0; i < n; i++ {
		out[i] = r.data[(start+i)%r.size]
	}
	return out
}

// Items returns a copy of every stored item, oldest first.
func (r *Ring[T]) Items() []T {
	return r.Last(r.count)
}

// Latest returns the newest item.
func (r *Ring[T]) Latest() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.data[(r.head-1+r.size)%r.size], true
}
