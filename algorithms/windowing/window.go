package windowing

import (
	"fmt"
	"math"
	"strings"

	"github.com/mjibson/go-dsp/window"

	"github.com/RyanBlaney/sonido-resonance/algorithms/common"
)

// Type represents a supported window function
type Type int

const (
	Hann Type = iota
	Hamming
	Blackman
	Rectangular

	numTypes
)

// generators maps each Type to its symmetric window generator.
// Rectangular is the identity (all-ones) window.
var generators = [numTypes]func(int) []float64{
	Hann:        window.Hann,
	Hamming:     window.Hamming,
	Blackman:    window.Blackman,
	Rectangular: window.Rectangular,
}

var names = [numTypes]string{
	Hann:        "hann",
	Hamming:     "hamming",
	Blackman:    "blackman",
	Rectangular: "rectangular",
}

// Types returns every supported window type in declaration order
func Types() []Type {
	return []Type{Hann, Hamming, Blackman, Rectangular}
}

// Valid reports whether t is one of the supported window types
func (t Type) Valid() bool {
	return t >= 0 && t < numTypes
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("window(%d)", int(t))
	}
	return names[t]
}

// ParseType resolves a window name (case-insensitive)
func ParseType(name string) (Type, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for t, n := range names {
		if n == key {
			return Type(t), nil
		}
	}
	return 0, fmt.Errorf("unknown window type %q (want one of hann, hamming, blackman, rectangular): %w",
		name, common.ErrInvalidParameter)
}

// MarshalText encodes the window as its lowercase name
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid window type %d: %w", int(t), common.ErrInvalidParameter)
	}
	return []byte(names[t]), nil
}

// UnmarshalText decodes a window name
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Window holds generated coefficients and the gains derived from them
type Window struct {
	Type         Type      `json:"type"`
	Size         int       `json:"size"`
	Coefficients []float64 `json:"-"`
	Sum          float64   `json:"sum"`    // Σw
	Energy       float64   `json:"energy"` // Σw²
	// PowerCorrection is sqrt(mean(w²)), the RMS amplitude correction for PSD scaling
	PowerCorrection float64 `json:"power_correction"`
	ENBW            float64 `json:"enbw"` // bins
}

// New generates a window of the given type and size
func New(t Type, size int) (*Window, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid window type %d: %w", int(t), common.ErrInvalidParameter)
	}
	if size < 1 {
		return nil, fmt.Errorf("window size must be positive, got %d: %w", size, common.ErrInvalidParameter)
	}

	w := &Window{
		Type:         t,
		Size:         size,
		Coefficients: generators[t](size),
	}
	w.calculateProperties()

	return w, nil
}

func (w *Window) calculateProperties() {
	n := float64(w.Size)

	sum, energy := 0.0, 0.0
	for _, c := range w.Coefficients {
		sum += c
		energy += c * c
	}

	w.Sum = sum
	w.Energy = energy
	w.PowerCorrection = math.Sqrt(energy / n)
	if sum != 0 {
		w.ENBW = n * energy / (sum * sum)
	}
}

// Apply multiplies signal by the window into a new slice
func (w *Window) Apply(signal []float64) ([]float64, error) {
	if len(signal) != w.Size {
		return nil, fmt.Errorf("signal length (%d) doesn't match window size (%d): %w",
			len(signal), w.Size, common.ErrInvalidParameter)
	}

	windowed := make([]float64, w.Size)
	for i, c := range w.Coefficients {
		windowed[i] = signal[i] * c
	}

	return windowed, nil
}

// ApplyInPlace multiplies signal by the window in place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != w.Size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d): %w",
			len(signal), w.Size, common.ErrInvalidParameter)
	}

	for i, c := range w.Coefficients {
		signal[i] *= c
	}

	return nil
}
