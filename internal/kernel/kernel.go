// Package kernel builds the power-law weights of the hybrid scheme that turns
// i.i.d. Gaussian increments into a fractional (Volterra) driving process.
package kernel

import (
	"fmt"
	"math"
	"slices"
)

// Fill writes the kernel for Hurst exponent h into dst:
//
//	dst[0] = 0
//	dst[k] = ((k+1)^a - k^a) / a,  a = h + 1/2
//
// The difference is evaluated as k^a * expm1(a*log1p(1/k)) / a, which is the
// same quantity without the cancellation of two nearly equal powers at
// large k.
func Fill(dst []float64, h float64) {
	if len(dst) == 0 {
		return
	}
	a := h + 0.5
	dst[0] = 0
	for k := 1; k < len(dst); k++ {
		fk := float64(k)
		dst[k] = math.Pow(fk, a) * math.Expm1(a*math.Log1p(1/fk)) / a
	}
}

// Cache maps each distinct H of a run to its kernel vector.
// Keys are the exact float64 values supplied by the grid; the grid copies
// rather than recomputes them, so equal H compare equal bit-for-bit.
//
// A Cache is immutable after NewCache and safe for concurrent readers.
type Cache struct {
	n       int
	keys    []float64
	kernels [][]float64
}

// NewCache builds kernels of length n for every distinct value in hs.
func NewCache(n int, hs []float64) *Cache {
	keys := slices.Clone(hs)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	c := &Cache{n: n, keys: keys, kernels: make([][]float64, len(keys))}
	backing := make([]float64, n*len(keys))
	for i, h := range keys {
		c.kernels[i] = backing[i*n : (i+1)*n : (i+1)*n]
		Fill(c.kernels[i], h)
	}
	return c
}

// Len returns the kernel length.
func (c *Cache) Len() int { return c.n }

// Size returns the number of cached kernels.
func (c *Cache) Size() int { return len(c.keys) }

// Kernel returns the kernel for h. The slice is shared and must not be
// modified.
func (c *Cache) Kernel(h float64) ([]float64, bool) {
	i, ok := slices.BinarySearch(c.keys, h)
	if !ok {
		return nil, false
	}
	return c.kernels[i], true
}

// MustKernel is Kernel for callers that built the cache from the same grid
// they query; a miss is a programming error.
func (c *Cache) MustKernel(h float64) []float64 {
	k, ok := c.Kernel(h)
	if !ok {
		panic(fmt.Sprintf("kernel: no kernel cached for H=%v", h))
	}
	return k
}
