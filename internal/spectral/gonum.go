package spectral

import "gonum.org/v1/gonum/dsp/fourier"

// gonumPlan adapts fourier.CmplxFFT to Plan. CmplxFFT keeps its own work
// arrays, allocated once here.
type gonumPlan struct {
	fft *fourier.CmplxFFT
}

func newGonumPlan(size int) *gonumPlan {
	return &gonumPlan{fft: fourier.NewCmplxFFT(size)}
}

func (p *gonumPlan) Forward(dst, src []complex128) { p.fft.Coefficients(dst, src) }
func (p *gonumPlan) Inverse(dst, src []complex128) { p.fft.Sequence(dst, src) }
func (p *gonumPlan) Len() int                      { return p.fft.Len() }
