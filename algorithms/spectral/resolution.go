package spectral

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-resonance/algorithms/common"
	"github.com/RyanBlaney/sonido-resonance/logging"
)

// DefaultMaxFFTLength bounds the transform size so a tiny target resolution
// on a long recording cannot exhaust memory.
const DefaultMaxFFTLength = 1 << 24

// maxIdealLength keeps the ideal length representable for absurdly small targets
const maxIdealLength = 1 << 52

// ResolutionPlan is the FFT length chosen for a signal and the resolution it achieves
type ResolutionPlan struct {
	FFTLength        int     `json:"fft_length" yaml:"fft_length"`
	ActualResolution float64 `json:"actual_resolution" yaml:"actual_resolution"` // Hz per bin
	IdealLength      int     `json:"ideal_length" yaml:"ideal_length"`
	TargetResolution float64 `json:"target_resolution" yaml:"target_resolution"`
	Capped           bool    `json:"capped" yaml:"capped"`   // ideal length exceeded the signal length
	Ceiling          bool    `json:"ceiling" yaml:"ceiling"` // planner ceiling, not the signal, limited the length
}

// Degraded reports whether the target resolution could not be achieved
func (p ResolutionPlan) Degraded() bool {
	return p.Capped || p.Ceiling
}

// Bins returns the number of one-sided frequency bins the plan produces
func (p ResolutionPlan) Bins() int {
	return OneSidedBins(p.FFTLength)
}

// Planner picks FFT lengths for a target frequency resolution
type Planner struct {
	// MaxFFTLength caps the transform length; values < 1 mean DefaultMaxFFTLength
	MaxFFTLength int

	logger logging.Logger
}

// NewPlanner creates a planner with the default FFT ceiling
func NewPlanner() *Planner {
	return NewPlannerWithCeiling(DefaultMaxFFTLength)
}

// NewPlannerWithCeiling creates a planner with a custom FFT ceiling
func NewPlannerWithCeiling(maxFFTLength int) *Planner {
	return &Planner{
		MaxFFTLength: maxFFTLength,
		logger: logging.WithFields(logging.Fields{
			"component": "resolution_planner",
		}),
	}
}

// PlanResolution plans with the default ceiling
func PlanResolution(signalLength, sampleRate int, targetResolution float64) (ResolutionPlan, error) {
	return NewPlanner().Plan(signalLength, sampleRate, targetResolution)
}

// Plan computes ideal = round(sampleRate/targetResolution) and caps it by the
// signal length and the ceiling. The signal is never padded up to the ideal length,
// so a short recording yields a coarser resolution than requested.
func (p *Planner) Plan(signalLength, sampleRate int, targetResolution float64) (ResolutionPlan, error) {
	if sampleRate <= 0 {
		return ResolutionPlan{}, fmt.Errorf("sample rate must be positive, got %d: %w", sampleRate, ErrInvalidParameter)
	}
	if targetResolution <= 0 || !common.IsFinite(targetResolution) {
		return ResolutionPlan{}, fmt.Errorf("target resolution must be a positive finite number, got %v: %w",
			targetResolution, ErrInvalidParameter)
	}
	if signalLength < 1 {
		return ResolutionPlan{}, fmt.Errorf("signal length must be at least 1, got %d: %w", signalLength, ErrInvalidParameter)
	}

	ceiling := p.ceiling()

	ideal := max(1, int(math.Min(math.Round(float64(sampleRate)/targetResolution), maxIdealLength)))

	fftLength := min(ideal, signalLength, ceiling)

	plan := ResolutionPlan{
		FFTLength:        fftLength,
		ActualResolution: float64(sampleRate) / float64(fftLength),
		IdealLength:      ideal,
		TargetResolution: targetResolution,
		Capped:           ideal > signalLength,
		Ceiling:          ideal > ceiling && signalLength > ceiling,
	}

	fields := logging.Fields{
		"signal_length":     signalLength,
		"sample_rate":       sampleRate,
		"target_resolution": targetResolution,
		"ideal_length":      ideal,
		"fft_length":        fftLength,
		"actual_resolution": plan.ActualResolution,
	}

	if plan.Ceiling {
		p.logger.Warn("FFT length limited by planner ceiling, resolution degraded", fields)
	} else {
		p.logger.Debug("Resolution planned", fields)
	}

	return plan, nil
}

func (p *Planner) ceiling() int {
	if p.MaxFFTLength < 1 {
		return DefaultMaxFFTLength
	}
	return p.MaxFFTLength
}
