package analysis

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-resonance/algorithms/common"
	"github.com/RyanBlaney/sonido-resonance/algorithms/peaks"
	"github.com/RyanBlaney/sonido-resonance/algorithms/spectral"
	"github.com/RyanBlaney/sonido-resonance/algorithms/stats"
	"github.com/RyanBlaney/sonido-resonance/logging"
	"github.com/RyanBlaney/sonido-resonance/transcode"
)

// SignalSummary describes the time-domain input
type SignalSummary struct {
	Samples       int     `json:"samples" yaml:"samples"`
	SampleRate    int     `json:"sample_rate" yaml:"sample_rate"`
	Duration      float64 `json:"duration" yaml:"duration"` // seconds
	Mean          float64 `json:"mean" yaml:"mean"`
	RMS           float64 `json:"rms" yaml:"rms"`
	PeakAmplitude float64 `json:"peak_amplitude" yaml:"peak_amplitude"`
}

// Result is the outcome of analyzing one signal
type Result struct {
	Source *transcode.AudioMetadata `json:"source,omitempty" yaml:"source,omitempty"`
	Signal SignalSummary            `json:"signal" yaml:"signal"`
	// Spectrum is cut at MaxFrequency and is what detection ran on
	Spectrum    *spectral.SpectrumResult    `json:"spectrum" yaml:"spectrum"`
	Detection   *peaks.DetectionResult      `json:"detection" yaml:"detection"`
	SPL         stats.DistributionSummary   `json:"spl" yaml:"spl"`
	Phase       *spectral.PhaseResult       `json:"phase,omitempty" yaml:"phase,omitempty"`
	Spectrogram *spectral.SpectrogramResult `json:"spectrogram,omitempty" yaml:"spectrogram,omitempty"`
	Elapsed     time.Duration               `json:"elapsed" yaml:"elapsed"`
}

// Plan returns the resolution plan used for the spectrum
func (r *Result) Plan() spectral.ResolutionPlan {
	return r.Spectrum.Plan
}

// Analyzer runs the spectrum → cutoff → detection pipeline. It holds no
// per-call state and may be shared between goroutines.
type Analyzer struct {
	config      Config
	estimator   *spectral.Estimator
	detector    *peaks.Detector
	spectrogram *spectral.Spectrogram
	percentiles *stats.Percentiles
	logger      logging.Logger
}

// NewAnalyzer validates config and builds the pipeline components
func NewAnalyzer(config Config) (*Analyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	estimator := spectral.NewEstimator(config.TargetResolution, config.Window).
		WithPlanner(spectral.NewPlannerWithCeiling(config.MaxFFTLength))

	return &Analyzer{
		config:      config,
		estimator:   estimator,
		detector:    peaks.NewDetector(config.Detection),
		spectrogram: spectral.NewSpectrogram(config.Spectrogram),
		percentiles: stats.NewPercentiles(),
		logger: logging.WithFields(logging.Fields{
			"component": "resonance_analyzer",
		}),
	}, nil
}

// Config returns the analyzer configuration
func (a *Analyzer) Config() Config {
	return a.config
}

// Analyze computes the SPL spectrum of a mono pressure signal and detects its
// resonance peaks. Phase and spectrogram are added when enabled in the config.
func (a *Analyzer) Analyze(signal []float64, sampleRate int) (*Result, error) {
	start := time.Now()

	summary, err := summarize(signal, sampleRate)
	if err != nil {
		return nil, err
	}

	logger := a.logger.WithFields(logging.Fields{
		"samples":     summary.Samples,
		"sample_rate": sampleRate,
	})
	logger.Debug("Starting resonance analysis", logging.Fields{
		"duration": summary.Duration,
		"rms":      summary.RMS,
	})

	full, err := a.estimator.Estimate(signal, sampleRate)
	if err != nil {
		logger.Error(err, "Spectral estimation failed")
		return nil, err
	}

	if full.Plan.Capped {
		logger.Debug("Frequency resolution limited by signal length", logging.Fields{
			"target_resolution": full.Plan.TargetResolution,
			"actual_resolution": full.Plan.ActualResolution,
		})
	}

	spectrum := full.Truncate(a.config.MaxFrequency)

	var detection *peaks.DetectionResult
	if spectrum.Bins() < peaks.MinBins {
		logger.Warn("Spectrum too short for peak detection", logging.Fields{
			"bins":          spectrum.Bins(),
			"max_frequency": a.config.MaxFrequency,
		})
		detection = a.detector.Empty(spectrum.SPLdB)
	} else if detection, err = a.detector.Detect(spectrum.Frequencies, spectrum.SPLdB); err != nil {
		logger.Error(err, "Peak detection failed", logging.Fields{
			"bins": spectrum.Bins(),
		})
		return nil, fmt.Errorf("peak detection failed: %w", err)
	}

	spl, err := a.percentiles.Summarize(spectrum.SPLdB)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize spectrum: %w", err)
	}

	result := &Result{
		Signal:    summary,
		Spectrum:  spectrum,
		Detection: detection,
		SPL:       spl,
	}

	if a.config.IncludePhase {
		phase, err := a.estimator.Phase(signal, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("phase estimation failed: %w", err)
		}
		result.Phase = phase.Truncate(a.config.MaxFrequency)
	}

	if a.config.IncludeSpectrogram {
		spectrogram, err := a.spectrogram.Compute(signal, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("spectrogram failed: %w", err)
		}
		result.Spectrogram = spectrogram
	}

	result.Elapsed = time.Since(start)

	logger.Info("Resonance analysis completed", logging.Fields{
		"fft_length":     spectrum.Plan.FFTLength,
		"resolution":     spectrum.Plan.ActualResolution,
		"bins":           spectrum.Bins(),
		"peaks":          len(detection.Peaks),
		"peak_frequency": spectrum.PeakFrequency,
		"elapsed_ms":     result.Elapsed.Milliseconds(),
	})

	return result, nil
}

// AnalyzeAudio analyzes decoded audio and attaches its source metadata
func (a *Analyzer) AnalyzeAudio(audio *transcode.AudioData) (*Result, error) {
	if audio == nil {
		return nil, fmt.Errorf("nil audio data: %w", common.ErrInvalidParameter)
	}

	result, err := a.Analyze(audio.PCM, audio.SampleRate)
	if err != nil {
		return nil, err
	}
	result.Source = audio.Metadata

	return result, nil
}

func summarize(signal []float64, sampleRate int) (SignalSummary, error) {
	if sampleRate <= 0 {
		return SignalSummary{}, fmt.Errorf("sample rate must be positive, got %d: %w", sampleRate, common.ErrInvalidParameter)
	}
	if len(signal) == 0 {
		return SignalSummary{}, fmt.Errorf("empty signal: %w", common.ErrInvalidParameter)
	}

	return SignalSummary{
		Samples:       len(signal),
		SampleRate:    sampleRate,
		Duration:      float64(len(signal)) / float64(sampleRate),
		Mean:          common.Mean(signal),
		RMS:           common.RMS(signal),
		PeakAmplitude: common.PeakAmplitude(signal),
	}, nil
}
