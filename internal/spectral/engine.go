package spectral

import (
	"fmt"

	"github.com/agbru/rbergomi/internal/arena"
)

// Convolver computes truncated linear convolutions.
type Convolver interface {
	// Convolve writes dst[j] = sum_{i<=j} x[i]*g[j-i] for j < len(dst).
	Convolve(dst, x, g []float64)
}

// Workspace holds the time- and frequency-domain buffers of one Engine.
// Every slice is carved from the owning worker's arena.
type Workspace struct {
	Driver, DriverHat   []complex128
	Kernel, KernelHat   []complex128
	Product, ProductHat []complex128
}

func newWorkspace(a *arena.Bump[complex128], size int) Workspace {
	return Workspace{
		Driver: a.Alloc(size), DriverHat: a.Alloc(size),
		Kernel: a.Alloc(size), KernelHat: a.Alloc(size),
		Product: a.Alloc(size), ProductHat: a.Alloc(size),
	}
}

// pinned is a kernel whose spectrum was computed once and is reused for
// as long as the engine lives.
type pinned struct {
	kernel []float64
	hat    []complex128
}

// Engine is the FFT convolution of one worker. It is stateful and NOT
// re-entrant: every concurrent caller needs its own Engine.
type Engine struct {
	backend Backend
	n, size int
	ws      Workspace

	driverFwd  Plan
	kernelFwd  Plan
	productInv Plan

	slots  [][]complex128
	pinned []pinned
}

// ArenaComplexes returns the arena capacity NewEngine needs for inputs of
// length n with room for kernelSlots pinned kernel spectra.
func ArenaComplexes(b Backend, n, kernelSlots int) int {
	return (6 + kernelSlots) * b.Size(n)
}

// NewEngine builds an engine for driver and kernel lengths up to n.
//
// Parameters:
//   - b: FFT backend.
//   - n: Maximum input length.
//   - a: Arena the buffers are carved from; see ArenaComplexes.
//   - kernelSlots: Number of kernels that can be pinned with Pin.
//
// Returns:
//   - *Engine: A ready engine.
func NewEngine(b Backend, n int, a *arena.Bump[complex128], kernelSlots int) *Engine {
	size := b.Size(n)
	e := &Engine{
		backend:    b,
		n:          n,
		size:       size,
		ws:         newWorkspace(a, size),
		driverFwd:  b.NewPlan(size),
		kernelFwd:  b.NewPlan(size),
		productInv: b.NewPlan(size),
		slots:      make([][]complex128, kernelSlots),
	}
	for i := range e.slots {
		e.slots[i] = a.Alloc(size)
	}
	return e
}

// Backend returns the FFT backend of the engine.
func (e *Engine) Backend() Backend { return e.backend }

// Size returns the transform length.
func (e *Engine) Size() int { return e.size }

// Pin precomputes and keeps the spectrum of g. The caller must not modify
// g afterwards. Pinning the same slice twice is a no-op.
//
// Returns:
//   - error: When every slot is taken.
func (e *Engine) Pin(g []float64) error {
	if len(g) == 0 || e.lookup(g) != nil {
		return nil
	}
	if len(e.pinned) == len(e.slots) {
		return fmt.Errorf("spectral: all %d kernel slots in use", len(e.slots))
	}
	hat := e.slots[len(e.pinned)]
	e.transformKernel(hat, g)
	e.pinned = append(e.pinned, pinned{kernel: g, hat: hat})
	return nil
}

func (e *Engine) lookup(g []float64) []complex128 {
	for _, p := range e.pinned {
		if len(p.kernel) == len(g) && &p.kernel[0] == &g[0] {
			return p.hat
		}
	}
	return nil
}

func (e *Engine) transformKernel(hat []complex128, g []float64) {
	loadReal(e.ws.Kernel, g)
	e.kernelFwd.Forward(hat, e.ws.Kernel)
}

// Convolve implements Convolver: zero-pad, transform both inputs, multiply
// the spectra, transform back and rescale by 1/size.
func (e *Engine) Convolve(dst, x, g []float64) {
	if len(x) > e.n || len(g) > e.n || len(dst) > e.n {
		panic(fmt.Sprintf("spectral: inputs (%d, %d, %d) exceed engine length %d", len(dst), len(x), len(g), e.n))
	}
	ws := &e.ws

	loadReal(ws.Driver, x)
	e.driverFwd.Forward(ws.DriverHat, ws.Driver)

	kernelHat := e.lookup(g)
	if kernelHat == nil {
		kernelHat = ws.KernelHat
		e.transformKernel(kernelHat, g)
	}

	for i, d := range ws.DriverHat {
		ws.ProductHat[i] = d * kernelHat[i]
	}
	e.productInv.Inverse(ws.Product, ws.ProductHat)

	scale := 1 / float64(e.size)
	for j := range dst {
		dst[j] = real(ws.Product[j]) * scale
	}
}

func loadReal(dst []complex128, src []float64) {
	for i, v := range src {
		dst[i] = complex(v, 0)
	}
	clear(dst[len(src):])
}

// Direct is the textbook O(n^2) truncated convolution.
func Direct(dst, x, g []float64) {
	for j := range dst {
		var s float64
		for i := 0; i <= j && i < len(x); i++ {
			if j-i < len(g) {
				s += x[i] * g[j-i]
			}
		}
		dst[j] = s
	}
}
