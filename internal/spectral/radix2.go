package spectral

import (
	"fmt"
	"math"
	"math/bits"
)

// radix2Plan is an iterative decimation-in-time Cooley-Tukey FFT.
// Twiddles are computed directly from Sincos for every index rather than
// by repeated multiplication, which keeps their error at one rounding.
type radix2Plan struct {
	n       int
	rev     []int
	twiddle []complex128 // exp(-2*pi*i*k/n), k < n/2
}

func newRadix2Plan(n int) *radix2Plan {
	if n < 1 || n&(n-1) != 0 {
		panic(fmt.Sprintf("spectral: radix-2 length %d is not a power of two", n))
	}
	p := &radix2Plan{n: n, rev: make([]int, n), twiddle: make([]complex128, n/2)}
	shift := uint(bits.UintSize - bits.Len(uint(n-1)))
	for i := range p.rev {
		if n > 1 {
			p.rev[i] = int(bits.Reverse(uint(i)) >> shift)
		}
	}
	for k := range p.twiddle {
		s, c := math.Sincos(2 * math.Pi * float64(k) / float64(n))
		p.twiddle[k] = complex(c, -s)
	}
	return p
}

func (p *radix2Plan) Len() int { return p.n }

func (p *radix2Plan) Forward(dst, src []complex128) { p.transform(dst, src, false) }
func (p *radix2Plan) Inverse(dst, src []complex128) { p.transform(dst, src, true) }

func (p *radix2Plan) transform(dst, src []complex128, inverse bool) {
	if len(dst) != p.n || len(src) != p.n {
		panic("spectral: radix-2 length mismatch")
	}
	copy(dst, src)
	for i, j := range p.rev {
		if i < j {
			dst[i], dst[j] = dst[j], dst[i]
		}
	}
	for size := 2; size <= p.n; size <<= 1 {
		half := size >> 1
		step := p.n / size
		for start := 0; start < p.n; start += size {
			for k := 0; k < half; k++ {
				w := p.twiddle[k*step]
				if inverse {
					w = complex(real(w), -imag(w))
				}
				a := dst[start+k]
				b := dst[start+k+half] * w
				dst[start+k] = a + b
				dst[start+k+half] = a - b
			}
		}
	}
}
