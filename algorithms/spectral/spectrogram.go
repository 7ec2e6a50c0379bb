package spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	dspspectral "github.com/mjibson/go-dsp/spectral"

	"github.com/RyanBlaney/sonido-resonance/algorithms/common"
	"github.com/RyanBlaney/sonido-resonance/algorithms/windowing"
	"github.com/RyanBlaney/sonido-resonance/logging"
)

// SpectrogramConfig holds short-time analysis settings
type SpectrogramConfig struct {
	// SegmentLength in samples; 0 picks min(len/10, fs/10) rounded down to a power of two
	SegmentLength int            `json:"segment_length" yaml:"segment_length" mapstructure:"segment_length"`
	Overlap       float64        `json:"overlap" yaml:"overlap" mapstructure:"overlap"` // fraction in [0,1)
	Window        windowing.Type `json:"window" yaml:"window" mapstructure:"window"`
}

// DefaultSpectrogramConfig returns 75% overlapping Hamming segments of automatic length
func DefaultSpectrogramConfig() SpectrogramConfig {
	return SpectrogramConfig{
		SegmentLength: 0,
		Overlap:       0.75,
		Window:        windowing.Hamming,
	}
}

// SpectrogramResult holds frequency x time grids. Magnitude[k][t] is |X| of bin k
// in frame t; PowerDensity is the one-sided PSD in units²/Hz.
type SpectrogramResult struct {
	Frequencies   []float64      `json:"frequencies" yaml:"frequencies"`
	Times         []float64      `json:"times" yaml:"times"` // segment centres, seconds
	Magnitude     [][]float64    `json:"magnitude" yaml:"magnitude"`
	PowerDensity  [][]float64    `json:"power_density" yaml:"power_density"`
	SegmentLength int            `json:"segment_length" yaml:"segment_length"`
	Overlap       int            `json:"overlap" yaml:"overlap"` // samples
	Window        windowing.Type `json:"window" yaml:"window"`
	SampleRate    int            `json:"sample_rate" yaml:"sample_rate"`
}

// Frames returns the number of time frames
func (r *SpectrogramResult) Frames() int {
	return len(r.Times)
}

// Spectrogram computes short-time spectra of overlapping windowed segments
type Spectrogram struct {
	config  SpectrogramConfig
	fft     *FFT
	windows *windowing.Generator
	logger  logging.Logger
}

// NewSpectrogram creates a spectrogram calculator
func NewSpectrogram(config SpectrogramConfig) *Spectrogram {
	return &Spectrogram{
		config:  config,
		fft:     NewFFT(),
		windows: windowing.NewGenerator(),
		logger: logging.WithFields(logging.Fields{
			"component": "spectrogram",
		}),
	}
}

// Config returns the spectrogram settings
func (s *Spectrogram) Config() SpectrogramConfig {
	return s.config
}

// AutoSegmentLength returns min(signalLength/10, sampleRate/10) rounded down to
// a power of two, never below 2
func AutoSegmentLength(signalLength, sampleRate int) int {
	n := min(signalLength/10, int(0.1*float64(sampleRate)))
	return max(2, common.PrevPowerOfTwo(n))
}

// Compute runs the short-time analysis over signal
func (s *Spectrogram) Compute(signal []float64, sampleRate int) (*SpectrogramResult, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d: %w", sampleRate, ErrInvalidParameter)
	}
	if len(signal) < 2 {
		return nil, fmt.Errorf("signal needs at least 2 samples, got %d: %w", len(signal), ErrInvalidParameter)
	}
	if s.config.Overlap < 0 || s.config.Overlap >= 1 || math.IsNaN(s.config.Overlap) {
		return nil, fmt.Errorf("overlap must be in [0,1), got %v: %w", s.config.Overlap, ErrInvalidParameter)
	}

	segmentLength := s.config.SegmentLength
	if segmentLength == 0 {
		segmentLength = AutoSegmentLength(len(signal), sampleRate)
	}
	if segmentLength < 2 || segmentLength > len(signal) {
		return nil, fmt.Errorf("segment length must be in [2, %d], got %d: %w",
			len(signal), segmentLength, ErrInvalidParameter)
	}

	noverlap := min(int(s.config.Overlap*float64(segmentLength)), segmentLength-1)
	stride := segmentLength - noverlap

	w, err := s.windows.Generate(s.config.Window, segmentLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	segments := dspspectral.Segment(signal, segmentLength, noverlap)
	freqBins := OneSidedBins(segmentLength)
	numFrames := len(segments)

	magnitude := make([][]float64, freqBins)
	density := make([][]float64, freqBins)
	for k := 0; k < freqBins; k++ {
		magnitude[k] = make([]float64, numFrames)
		density[k] = make([]float64, numFrames)
	}

	scale := float64(sampleRate) * w.Energy
	nyquist := -1
	if segmentLength%2 == 0 {
		nyquist = segmentLength / 2
	}

	times := make([]float64, numFrames)
	for t, segment := range segments {
		frame := common.RemoveDC(segment)
		if err := w.ApplyInPlace(frame); err != nil {
			return nil, err
		}

		for k, c := range s.fft.ComputeOneSided(frame) {
			mag := cmplx.Abs(c)
			magnitude[k][t] = mag
			if scale > 0 {
				p := mag * mag / scale
				if k > 0 && k != nyquist {
					p *= 2
				}
				density[k][t] = p
			}
		}

		times[t] = (float64(t*stride) + float64(segmentLength)/2) / float64(sampleRate)
	}

	s.logger.Debug("Spectrogram computed", logging.Fields{
		"segment_length": segmentLength,
		"overlap":        noverlap,
		"frames":         numFrames,
		"freq_bins":      freqBins,
		"window":         s.config.Window.String(),
	})

	return &SpectrogramResult{
		Frequencies:   BinFrequencies(freqBins, segmentLength, sampleRate),
		Times:         times,
		Magnitude:     magnitude,
		PowerDensity:  density,
		SegmentLength: segmentLength,
		Overlap:       noverlap,
		Window:        s.config.Window,
		SampleRate:    sampleRate,
	}, nil
}
