// Package spectral computes the kernel convolution of the hybrid scheme in
// the frequency domain. Each pricing worker owns one Engine: plans and
// buffers are built once and reused for every sample and grid row.
package spectral

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// ErrUnknownBackend is returned by ParseBackend for unsupported names.
var ErrUnknownBackend = errors.New("unknown FFT backend")

// Backend selects the FFT implementation behind an Engine.
type Backend string

const (
	// Gonum uses gonum's mixed-radix complex FFT on a 2-3-5 smooth length.
	Gonum Backend = "gonum"
	// Radix2 uses the in-house iterative radix-2 FFT on a power-of-two length.
	Radix2 Backend = "radix2"
)

// Backends lists every available backend.
func Backends() []Backend { return []Backend{Gonum, Radix2} }

// ParseBackend converts a user-supplied name into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case Gonum, Radix2:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Plan is a precomputed complex transform of fixed length. Both directions
// are unnormalized: Forward followed by Inverse multiplies by Len.
// dst and src may be the same slice. A Plan is not safe for concurrent use.
type Plan interface {
	Forward(dst, src []complex128)
	Inverse(dst, src []complex128)
	Len() int
}

// Size returns the transform length the backend uses for length-n inputs.
// It is at least 2n-1, so the circular convolution equals the linear one.
func (b Backend) Size(n int) int {
	m := 2*n - 1
	if m < 1 {
		m = 1
	}
	switch b {
	case Radix2:
		return nextPow2(m)
	default:
		return nextSmooth(m)
	}
}

// NewPlan builds a plan of the given length.
func (b Backend) NewPlan(size int) Plan {
	switch b {
	case Radix2:
		return newRadix2Plan(size)
	case Gonum:
		return newGonumPlan(size)
	default:
		panic(fmt.Sprintf("spectral: %v: %q", ErrUnknownBackend, string(b)))
	}
}

func nextPow2(m int) int {
	if m <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(m-1))
}

// nextSmooth returns the smallest 2^a 3^b 5^c >= m, the lengths fftpack
// factors into its fast radices.
func nextSmooth(m int) int {
	for n := max(m, 1); ; n++ {
		r := n
		for _, p := range [...]int{2, 3, 5} {
			for r%p == 0 {
				r /= p
			}
		}
		if r == 1 {
			return n
		}
	}
}
