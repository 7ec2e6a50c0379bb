package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp, which handles every length including
// non-powers of two (Bluestein for the awkward ones)
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the full complex spectrum of a real signal
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	return fft.FFTReal(x)
}

// ComputeOneSided returns the non-negative frequency bins 0..N/2
func (f *FFT) ComputeOneSided(x []float64) []complex128 {
	full := f.Compute(x)
	if len(full) == 0 {
		return full
	}
	return full[:OneSidedBins(len(x))]
}

// OneSidedBins is the number of non-negative frequency bins of an n-point transform
func OneSidedBins(n int) int {
	return n/2 + 1
}

// BinFrequencies returns f_k = k*sampleRate/n for k in [0, bins)
func BinFrequencies(bins, n, sampleRate int) []float64 {
	freqs := make([]float64, bins)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / float64(n)
	}
	return freqs
}
