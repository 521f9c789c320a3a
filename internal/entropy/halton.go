package entropy

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// ─────────────────────────────────────────────────────────────────────────────
// Scrambled Halton sequence
// ─────────────────────────────────────────────────────────────────────────────

// Halton is a digit-scrambled Halton sequence. Dimension j uses the j-th
// prime as base and a fixed random permutation of the non-zero digits of
// that base (zero stays zero, so the sequence keeps its origin at index 0).
//
// Halton is NOT safe for concurrent use: At returns an internal buffer that
// the next call overwrites.
type Halton struct {
	bases []int
	perms [][]int
	point []float64
}

// NewHalton builds a dim-dimensional sequence whose scrambling is fully
// determined by seed.
func NewHalton(dim int, seed uint64) *Halton {
	rng := rand.New(rand.NewSource(seed))
	h := &Halton{
		bases: firstPrimes(dim),
		perms: make([][]int, dim),
		point: make([]float64, dim),
	}
	for j, b := range h.bases {
		perm := make([]int, b)
		for d, p := range rng.Perm(b - 1) {
			perm[d+1] = p + 1
		}
		h.perms[j] = perm
	}
	return h
}

// Dim returns the number of coordinates per point.
func (h *Halton) Dim() int { return len(h.bases) }

// At returns the point with the given 1-based index. Index 0 is the origin,
// which maps to an infinite Gaussian, and is rejected.
func (h *Halton) At(index uint64) []float64 {
	if index == 0 {
		panic("entropy: Halton index 0 maps to the origin")
	}
	for j, b := range h.bases {
		perm := h.perms[j]
		ub := uint64(b)
		inv := 1 / float64(b)
		f := inv
		v := 0.0
		for i := index; i > 0; i /= ub {
			v += float64(perm[i%ub]) * f
			f *= inv
		}
		h.point[j] = v
	}
	return h.point
}

func firstPrimes(n int) []int {
	primes := make([]int, 0, n)
	if n == 0 {
		return primes
	}
	// The n-th prime is below n(ln n + ln ln n) for n >= 6.
	limit := 15
	if n >= 6 {
		fn := float64(n)
		limit = int(fn*(math.Log(fn)+math.Log(math.Log(fn)))) + 1
	}
	composite := make([]bool, limit+1)
	for p := 2; p <= limit && len(primes) < n; p++ {
		if composite[p] {
			continue
		}
		primes = append(primes, p)
		for q := p * p; q <= limit; q += p {
			composite[q] = true
		}
	}
	return primes
}

// ─────────────────────────────────────────────────────────────────────────────
// Quasi-random Source
// ─────────────────────────────────────────────────────────────────────────────

// QuasiRandom maps a sample index to a Gaussian vector through a scrambled
// Halton point. The mapping does not depend on which worker asks, so
// aggregates are independent of the worker count up to summation order.
//
// The Halton generator is shared; mu serializes the draw only. The
// inverse-CDF transform runs outside the lock.
type QuasiRandom struct {
	mu       sync.Mutex
	seq      *Halton
	n        int
	withSpot bool
}

// NewQuasiRandom prepares a source for n-step samples. Coordinates are
// interleaved so the best-distributed low dimensions drive the first steps
// of both W1 and W1Perp; WPerp takes the trailing block when withSpot is
// set.
func NewQuasiRandom(n int, withSpot bool, scrambleSeed uint64) *QuasiRandom {
	return &QuasiRandom{
		seq:      NewHalton(SampleFloats(n, withSpot), scrambleSeed),
		n:        n,
		withSpot: withSpot,
	}
}

// Stream implements Source.
func (q *QuasiRandom) Stream(int) Stream {
	return &qmcStream{src: q, u: make([]float64, q.seq.Dim())}
}

// Name implements Source.
func (q *QuasiRandom) Name() string { return "halton" }

type qmcStream struct {
	src *QuasiRandom
	u   []float64
}

func (s *qmcStream) Draw(index int64, dst *Sample) {
	if index < 0 {
		panic(fmt.Sprintf("entropy: negative sample index %d", index))
	}
	s.src.mu.Lock()
	copy(s.u, s.src.seq.At(uint64(index)+1))
	s.src.mu.Unlock()

	n := s.src.n
	for k := 0; k < n; k++ {
		dst.W1[k] = gaussian(s.u[2*k])
		dst.W1Perp[k] = gaussian(s.u[2*k+1])
	}
	if s.src.withSpot && dst.WPerp != nil {
		for k := 0; k < n; k++ {
			dst.WPerp[k] = gaussian(s.u[2*n+k])
		}
	}
}

// gaussian maps a uniform in (0, 1) to a standard normal.
func gaussian(u float64) float64 {
	const eps = 0x1p-53
	u = math.Min(math.Max(u, eps), 1-eps)
	return distuv.UnitNormal.Quantile(u)
}
