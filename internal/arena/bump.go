// Package arena provides the per-worker bump allocator that backs every
// buffer a pricing worker touches while it sweeps samples.
package arena

// ─────────────────────────────────────────────────────────────────────────────
// Bump Allocator
// ─────────────────────────────────────────────────────────────────────────────

// Bump hands out slices from one pre-allocated backing buffer.
// All slices are carved at worker start-up and live until the worker
// finishes, so there is nothing to free individually: Release drops the
// whole buffer at pool teardown.
//
// Every returned slice has its capacity clipped to its length, so an
// append on one buffer reallocates instead of spilling into the next one.
//
// Thread Safety: Bump is NOT thread-safe. Each worker owns its own instance.
type Bump[T any] struct {
	buffer []T
	offset int
	spills int
}

// New creates a bump allocator holding exactly capacity elements.
//
// Parameters:
//   - capacity: Number of T elements reserved up front.
//
// Returns:
//   - *Bump[T]: A ready-to-use allocator.
func New[T any](capacity int) *Bump[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Bump[T]{buffer: make([]T, capacity)}
}

// Alloc returns a zeroed slice of n elements.
//
// If the request does not fit in the remaining capacity, Alloc falls back to
// make and records a spill. Spills keep the allocator correct when a size
// estimate was too small; Spills lets tests assert that the estimate held.
//
// Parameters:
//   - n: Number of elements.
//
// Returns:
//   - []T: A zeroed slice with len == cap == n.
func (b *Bump[T]) Alloc(n int) []T {
	if n <= 0 {
		return nil
	}
	if b.offset+n > len(b.buffer) {
		b.spills++
		return make([]T, n)
	}
	s := b.buffer[b.offset : b.offset+n : b.offset+n]
	b.offset += n
	clear(s)
	return s
}

// Used returns the number of elements handed out so far.
func (b *Bump[T]) Used() int { return b.offset }

// Cap returns the size of the backing buffer.
func (b *Bump[T]) Cap() int { return len(b.buffer) }

// Spills returns how many allocations fell back to the heap.
func (b *Bump[T]) Spills() int { return b.spills }

// Reset rewinds the allocator. Slices returned earlier must not be used
// afterwards: they will alias new allocations.
func (b *Bump[T]) Reset() {
	b.offset = 0
	b.spills = 0
}

// Release drops the backing buffer so it can be collected.
func (b *Bump[T]) Release() {
	b.buffer = nil
	b.offset = 0
}
