// Package entropy supplies the standard-normal increments consumed by the
// path builder, either from independent per-worker pseudo-random streams or
// from an index-driven quasi-random sequence.
package entropy

import "github.com/agbru/rbergomi/internal/arena"

// Sample holds the Gaussian increments of one Monte-Carlo path.
// W1 drives the variance process, W1Perp is its orthogonal complement used
// by the hybrid scheme, and WPerp is the independent spot driver needed only
// when the terminal price is simulated.
type Sample struct {
	W1     []float64
	W1Perp []float64
	WPerp  []float64
}

// NewSample carves the increment buffers of an n-step sample from a.
// WPerp is left nil unless withSpot is set.
func NewSample(a *arena.Bump[float64], n int, withSpot bool) *Sample {
	s := &Sample{W1: a.Alloc(n), W1Perp: a.Alloc(n)}
	if withSpot {
		s.WPerp = a.Alloc(n)
	}
	return s
}

// SampleFloats is the arena capacity NewSample needs.
func SampleFloats(n int, withSpot bool) int {
	if withSpot {
		return 3 * n
	}
	return 2 * n
}

// Stream fills samples for exactly one worker. Streams are not safe for
// concurrent use; each worker asks its Source for its own.
type Stream interface {
	// Draw fills s with the increments of the 0-based sample index.
	// Pseudo-random streams ignore index and return their next draw.
	Draw(index int64, s *Sample)
}

// Source creates the per-worker streams of a run.
type Source interface {
	// Stream returns the stream owned by worker w. Calling it twice for the
	// same worker restarts that worker's sequence.
	Stream(worker int) Stream
	// Name identifies the source in logs and metrics.
	Name() string
}
