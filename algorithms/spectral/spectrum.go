package spectral

import (
	"fmt"
	"math"
	"math/cmplx"
	"slices"

	"github.com/RyanBlaney/sonido-resonance/algorithms/common"
	"github.com/RyanBlaney/sonido-resonance/algorithms/windowing"
	"github.com/RyanBlaney/sonido-resonance/logging"
)

const (
	// ReferencePressure is the 0 dB SPL reference, 20 µPa
	ReferencePressure = 20e-6

	// PSDFloor keeps the logarithm finite for empty bins
	PSDFloor = 1e-20
)

// SpectrumResult is a one-sided calibrated spectrum
type SpectrumResult struct {
	Frequencies   []float64      `json:"frequencies" yaml:"frequencies"`
	SPLdB         []float64      `json:"spl_db" yaml:"spl_db"`
	PSD           []float64      `json:"psd" yaml:"psd"`
	PeakFrequency float64        `json:"peak_frequency" yaml:"peak_frequency"`
	PeakSPL       float64        `json:"peak_spl" yaml:"peak_spl"`
	Plan          ResolutionPlan `json:"plan" yaml:"plan"`
	Window        windowing.Type `json:"window" yaml:"window"`
	SampleRate    int            `json:"sample_rate" yaml:"sample_rate"`
}

// Bins returns the number of frequency bins
func (s *SpectrumResult) Bins() int {
	return len(s.Frequencies)
}

// TotalPower returns Σ psd, which equals the mean square of the
// DC-removed signal for a rectangular window (Parseval)
func (s *SpectrumResult) TotalPower() float64 {
	total := 0.0
	for _, p := range s.PSD {
		total += p
	}
	return total
}

// Truncate returns a new result holding only the bins with f <= maxFreq, with
// the global peak recomputed over what remains. maxFreq <= 0 disables the cutoff.
func (s *SpectrumResult) Truncate(maxFreq float64) *SpectrumResult {
	n := cutoff(s.Frequencies, maxFreq)

	out := &SpectrumResult{
		Frequencies: slices.Clone(s.Frequencies[:n]),
		SPLdB:       slices.Clone(s.SPLdB[:n]),
		PSD:         slices.Clone(s.PSD[:n]),
		Plan:        s.Plan,
		Window:      s.Window,
		SampleRate:  s.SampleRate,
	}
	out.locatePeak()

	return out
}

func (s *SpectrumResult) locatePeak() {
	idx, spl := common.ArgMax(s.SPLdB)
	if idx < 0 {
		s.PeakFrequency, s.PeakSPL = 0, math.Inf(-1)
		return
	}
	s.PeakFrequency = s.Frequencies[idx]
	s.PeakSPL = spl
}

// PhaseResult holds the per-bin phase angle of the windowed transform
type PhaseResult struct {
	Frequencies  []float64      `json:"frequencies" yaml:"frequencies"`
	PhaseDegrees []float64      `json:"phase_degrees" yaml:"phase_degrees"`
	Plan         ResolutionPlan `json:"plan" yaml:"plan"`
}

// Truncate returns a new result holding only the bins with f <= maxFreq;
// maxFreq <= 0 disables the cutoff
func (p *PhaseResult) Truncate(maxFreq float64) *PhaseResult {
	n := cutoff(p.Frequencies, maxFreq)
	return &PhaseResult{
		Frequencies:  slices.Clone(p.Frequencies[:n]),
		PhaseDegrees: slices.Clone(p.PhaseDegrees[:n]),
		Plan:         p.Plan,
	}
}

// cutoff returns the number of leading ascending frequencies <= maxFreq
func cutoff(frequencies []float64, maxFreq float64) int {
	if maxFreq <= 0 {
		return len(frequencies)
	}
	n := 0
	for n < len(frequencies) && frequencies[n] <= maxFreq {
		n++
	}
	return n
}

// Estimator converts a time-domain pressure signal (Pa) into an SPL spectrum
type Estimator struct {
	TargetResolution float64
	Window           windowing.Type

	planner *Planner
	fft     *FFT
	logger  logging.Logger
}

// NewEstimator creates a spectrum estimator with the default planner
func NewEstimator(targetResolution float64, window windowing.Type) *Estimator {
	return &Estimator{
		TargetResolution: targetResolution,
		Window:           window,
		planner:          NewPlanner(),
		fft:              NewFFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "spectral_estimator",
		}),
	}
}

// WithPlanner replaces the resolution planner
func (e *Estimator) WithPlanner(p *Planner) *Estimator {
	e.planner = p
	return e
}

// Planner returns the planner used by Estimate
func (e *Estimator) Planner() *Planner {
	return e.planner
}

// Estimate plans the FFT length for the signal and computes its SPL spectrum
func (e *Estimator) Estimate(signal []float64, sampleRate int) (*SpectrumResult, error) {
	plan, err := e.planner.Plan(len(signal), sampleRate, e.TargetResolution)
	if err != nil {
		return nil, fmt.Errorf("failed to plan resolution: %w", err)
	}

	return e.EstimateWithPlan(signal, sampleRate, plan)
}

// EstimateWithPlan computes the SPL spectrum for an explicit plan. A plan
// longer than the signal zero-pads it; a shorter one truncates it.
func (e *Estimator) EstimateWithPlan(signal []float64, sampleRate int, plan ResolutionPlan) (*SpectrumResult, error) {
	spectrum, w, plan, err := e.transform(signal, sampleRate, plan)
	if err != nil {
		return nil, err
	}

	n := float64(plan.FFTLength)
	norm := n * n * w.PowerCorrection * w.PowerCorrection

	bins := len(spectrum)
	psd := make([]float64, bins)
	spl := make([]float64, bins)

	for k, c := range spectrum {
		if norm > 0 {
			re, im := real(c), imag(c)
			psd[k] = re*re + im*im
			if k > 0 {
				psd[k] *= 2
			}
			psd[k] /= norm
		}

		pRMS := math.Sqrt(math.Max(psd[k], PSDFloor) * plan.ActualResolution)
		spl[k] = 20 * math.Log10(pRMS/ReferencePressure)
	}

	result := &SpectrumResult{
		Frequencies: BinFrequencies(bins, plan.FFTLength, sampleRate),
		SPLdB:       spl,
		PSD:         psd,
		Plan:        plan,
		Window:      e.Window,
		SampleRate:  sampleRate,
	}
	result.locatePeak()

	e.logger.Debug("Spectrum estimated", logging.Fields{
		"fft_length":     plan.FFTLength,
		"bins":           bins,
		"window":         e.Window.String(),
		"peak_frequency": result.PeakFrequency,
		"peak_spl":       result.PeakSPL,
	})

	return result, nil
}

// Phase returns the phase angle in degrees of the same windowed transform Estimate uses
func (e *Estimator) Phase(signal []float64, sampleRate int) (*PhaseResult, error) {
	plan, err := e.planner.Plan(len(signal), sampleRate, e.TargetResolution)
	if err != nil {
		return nil, fmt.Errorf("failed to plan resolution: %w", err)
	}

	spectrum, _, plan, err := e.transform(signal, sampleRate, plan)
	if err != nil {
		return nil, err
	}

	degrees := make([]float64, len(spectrum))
	for k, c := range spectrum {
		degrees[k] = cmplx.Phase(c) * 180 / math.Pi
	}

	return &PhaseResult{
		Frequencies:  BinFrequencies(len(spectrum), plan.FFTLength, sampleRate),
		PhaseDegrees: degrees,
		Plan:         plan,
	}, nil
}

// transform removes DC, fits the signal to the plan length, windows it and
// returns the one-sided spectrum. The caller's slice is never modified.
func (e *Estimator) transform(signal []float64, sampleRate int, plan ResolutionPlan) ([]complex128, *windowing.Window, ResolutionPlan, error) {
	if sampleRate <= 0 {
		return nil, nil, plan, fmt.Errorf("sample rate must be positive, got %d: %w", sampleRate, ErrInvalidParameter)
	}
	if len(signal) == 0 {
		return nil, nil, plan, fmt.Errorf("empty signal: %w", ErrInvalidParameter)
	}
	if plan.FFTLength < 1 {
		return nil, nil, plan, fmt.Errorf("fft length must be at least 1, got %d: %w", plan.FFTLength, ErrInvalidParameter)
	}

	plan.ActualResolution = float64(sampleRate) / float64(plan.FFTLength)

	w, err := windowing.New(e.Window, plan.FFTLength)
	if err != nil {
		return nil, nil, plan, fmt.Errorf("failed to create window: %w", err)
	}

	if plan.FFTLength > len(signal) {
		e.logger.Debug("Zero-padding signal to plan length", logging.Fields{
			"signal_length": len(signal),
			"fft_length":    plan.FFTLength,
		})
	}

	frame := common.FitLength(common.RemoveDC(signal), plan.FFTLength)
	if err := w.ApplyInPlace(frame); err != nil {
		return nil, nil, plan, err
	}

	return e.fft.ComputeOneSided(frame), w, plan, nil
}
