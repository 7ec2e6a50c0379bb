package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-resonance/analysis"
)

// addAnalysisFlags registers the flags shared by analyze and batch. Defaults
// mirror analysis.DefaultConfig so an untouched flag never overrides it.
func addAnalysisFlags(flags *pflag.FlagSet) {
	defaults := analysis.DefaultConfig()

	flags.Float64("resolution", defaults.TargetResolution,
		"target frequency resolution in Hz")
	flags.String("window", defaults.Window.String(),
		"window function (hann, hamming, blackman, rectangular)")
	flags.Float64("max-freq", defaults.MaxFrequency,
		"ignore bins above this frequency in Hz (0 keeps all)")
	flags.Int("max-fft-length", defaults.MaxFFTLength,
		"upper bound on the FFT length")
	flags.Float64("prominence", defaults.Detection.MinProminence,
		"minimum peak prominence in dB")
	flags.Float64("distance", defaults.Detection.MinDistance,
		"minimum spacing between peaks in Hz")
	flags.Int("max-peaks", defaults.Detection.MaxPeaks,
		"maximum number of peaks reported")
	flags.String("height", "auto",
		"minimum peak SPL in dB, or auto for median + 1.5 std")
	flags.Bool("phase", defaults.IncludePhase,
		"include the phase spectrum")
	flags.Bool("spectrogram", defaults.IncludeSpectrogram,
		"include a spectrogram")
	flags.Int("spectrogram-segment", defaults.Spectrogram.SegmentLength,
		"spectrogram segment length in samples (0 picks one)")
	flags.Float64("spectrogram-overlap", defaults.Spectrogram.Overlap,
		"spectrogram segment overlap fraction in [0, 1)")
	flags.String("spectrogram-window", defaults.Spectrogram.Window.String(),
		"spectrogram window function")
	flags.Float64("max-duration", defaults.MaxDuration,
		"decode at most this many seconds of each file (0 reads all)")
	flags.Int("workers", defaults.Workers,
		"files analyzed concurrently in batch mode")
}

// analysisConfig decodes flags, env and config file into an analysis.Config
func analysisConfig(v *viper.Viper) (analysis.Config, error) {
	config := analysis.DefaultConfig()

	err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return config, fmt.Errorf("invalid configuration: %w", err)
	}

	if height := strings.TrimSpace(v.GetString("height")); height != "" && !strings.EqualFold(height, "auto") {
		value, err := strconv.ParseFloat(height, 64)
		if err != nil {
			return config, fmt.Errorf("invalid height %q: must be a number or auto", height)
		}
		config.Detection = config.Detection.WithHeight(value)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}
