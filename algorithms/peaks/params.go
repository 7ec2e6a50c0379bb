package peaks

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-resonance/algorithms/common"
)

// ErrInvalidParameter is returned for malformed spectra and out-of-range parameters
var ErrInvalidParameter = common.ErrInvalidParameter

// AutoHeightFactor scales the SPL standard deviation added to the median
// when no explicit height threshold is given
const AutoHeightFactor = 1.5

// Params controls resonance peak detection. Height and prominence are
// independent filters; a peak must pass both.
type Params struct {
	MinProminence float64 `json:"min_prominence" yaml:"min_prominence" mapstructure:"min_prominence"` // dB, > 0
	MinDistance   float64 `json:"min_distance" yaml:"min_distance" mapstructure:"min_distance"`       // Hz, >= 0
	// MinHeight is the SPL floor in dB; nil means median(spl) + 1.5*std(spl)
	MinHeight *float64 `json:"min_height,omitempty" yaml:"min_height,omitempty" mapstructure:"min_height"`
	MaxPeaks  int      `json:"max_peaks" yaml:"max_peaks" mapstructure:"max_peaks"` // >= 1
}

// DefaultParams returns 6 dB prominence, 10 Hz spacing, automatic height and at most 20 peaks
func DefaultParams() Params {
	return Params{
		MinProminence: 6.0,
		MinDistance:   10.0,
		MinHeight:     nil,
		MaxPeaks:      20,
	}
}

// WithHeight returns a copy of p with an explicit height threshold
func (p Params) WithHeight(height float64) Params {
	p.MinHeight = &height
	return p
}

// AutoHeight reports whether the height threshold is derived from the spectrum
func (p Params) AutoHeight() bool {
	return p.MinHeight == nil
}

// Validate checks parameter ranges
func (p Params) Validate() error {
	if !(p.MinProminence > 0) || math.IsInf(p.MinProminence, 0) {
		return fmt.Errorf("min prominence must be a positive finite number, got %v: %w", p.MinProminence, ErrInvalidParameter)
	}
	if !(p.MinDistance >= 0) || math.IsInf(p.MinDistance, 0) {
		return fmt.Errorf("min distance must be a non-negative finite number, got %v: %w", p.MinDistance, ErrInvalidParameter)
	}
	if p.MinHeight != nil && math.IsNaN(*p.MinHeight) {
		return fmt.Errorf("min height must not be NaN: %w", ErrInvalidParameter)
	}
	if p.MaxPeaks < 1 {
		return fmt.Errorf("max peaks must be at least 1, got %d: %w", p.MaxPeaks, ErrInvalidParameter)
	}
	return nil
}
