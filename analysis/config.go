package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-resonance/algorithms/common"
	"github.com/RyanBlaney/sonido-resonance/algorithms/peaks"
	"github.com/RyanBlaney/sonido-resonance/algorithms/spectral"
	"github.com/RyanBlaney/sonido-resonance/algorithms/windowing"
)

// ErrInvalidConfig is returned when a configuration value is out of range
var ErrInvalidConfig = common.ErrInvalidParameter

// Config holds every analysis setting. It is passed by value and never
// modified by the analyzer.
type Config struct {
	// TargetResolution is the requested bin spacing in Hz
	TargetResolution float64        `json:"target_resolution" yaml:"target_resolution" mapstructure:"target_resolution"`
	Window           windowing.Type `json:"window" yaml:"window" mapstructure:"window"`
	// MaxFrequency drops bins above this frequency before detection; 0 keeps all
	MaxFrequency float64 `json:"max_frequency" yaml:"max_frequency" mapstructure:"max_frequency"`
	// MaxFFTLength bounds the transform size and with it memory use
	MaxFFTLength int          `json:"max_fft_length" yaml:"max_fft_length" mapstructure:"max_fft_length"`
	Detection    peaks.Params `json:"detection" yaml:"detection" mapstructure:"detection"`

	IncludePhase       bool                       `json:"include_phase" yaml:"include_phase" mapstructure:"include_phase"`
	IncludeSpectrogram bool                       `json:"include_spectrogram" yaml:"include_spectrogram" mapstructure:"include_spectrogram"`
	Spectrogram        spectral.SpectrogramConfig `json:"spectrogram" yaml:"spectrogram" mapstructure:"spectrogram"`

	// MaxDuration limits how many seconds of each file are decoded; 0 reads everything
	MaxDuration float64 `json:"max_duration" yaml:"max_duration" mapstructure:"max_duration"`
	// Workers is the number of files analyzed concurrently in batch mode
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns 0.01 Hz target resolution, a Hann window, a 2 kHz
// cutoff and the default detection parameters
func DefaultConfig() Config {
	return Config{
		TargetResolution:   0.01,
		Window:             windowing.Hann,
		MaxFrequency:       2000.0,
		MaxFFTLength:       spectral.DefaultMaxFFTLength,
		Detection:          peaks.DefaultParams(),
		IncludePhase:       false,
		IncludeSpectrogram: false,
		Spectrogram:        spectral.DefaultSpectrogramConfig(),
		MaxDuration:        0,
		Workers:            runtime.NumCPU(),
	}
}

// Validate checks every field and returns the first problem found
func (c Config) Validate() error {
	if !(c.TargetResolution > 0) || math.IsInf(c.TargetResolution, 0) {
		return fmt.Errorf("target resolution must be a positive finite number, got %v: %w", c.TargetResolution, ErrInvalidConfig)
	}
	if !c.Window.Valid() {
		return fmt.Errorf("unknown window type %d: %w", int(c.Window), ErrInvalidConfig)
	}
	if !(c.MaxFrequency >= 0) || math.IsInf(c.MaxFrequency, 0) {
		return fmt.Errorf("max frequency must be a non-negative finite number, got %v: %w", c.MaxFrequency, ErrInvalidConfig)
	}
	if c.MaxFFTLength < 1 {
		return fmt.Errorf("max fft length must be at least 1, got %d: %w", c.MaxFFTLength, ErrInvalidConfig)
	}
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if c.Spectrogram.SegmentLength != 0 && c.Spectrogram.SegmentLength < 2 {
		return fmt.Errorf("spectrogram segment length must be 0 (auto) or at least 2, got %d: %w", c.Spectrogram.SegmentLength, ErrInvalidConfig)
	}
	if !(c.Spectrogram.Overlap >= 0 && c.Spectrogram.Overlap < 1) {
		return fmt.Errorf("spectrogram overlap must be in [0, 1), got %v: %w", c.Spectrogram.Overlap, ErrInvalidConfig)
	}
	if !c.Spectrogram.Window.Valid() {
		return fmt.Errorf("unknown spectrogram window type %d: %w", int(c.Spectrogram.Window), ErrInvalidConfig)
	}
	if !(c.MaxDuration >= 0) || math.IsInf(c.MaxDuration, 0) {
		return fmt.Errorf("max duration must be a non-negative number of seconds, got %v: %w", c.MaxDuration, ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d: %w", c.Workers, ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads a YAML (.yaml, .yml) or JSON (.json) file on top of
// DefaultConfig and validates the result
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	case ".json":
		err = json.Unmarshal(data, &config)
	default:
		return config, fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return config, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}
