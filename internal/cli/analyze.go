package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-resonance/analysis"
	"github.com/RyanBlaney/sonido-resonance/logging"
	"github.com/RyanBlaney/sonido-resonance/transcode"
)

func newAnalyzeCommand(opts *options) *cobra.Command {
	var includeSpectrum bool

	cmd := &cobra.Command{
		Use:   "analyze [flags] <file>",
		Short: "Detect resonance peaks in one recording",
		Long: `Compute the SPL spectrum of a recording and report its resonance peaks.

Examples:
  # Default analysis: 0.01 Hz target resolution, peaks below 2 kHz
  sonido-resonance analyze stage.wav

  # Stricter prominence, explicit height floor, JSON output
  sonido-resonance analyze --prominence 12 --height 40 -o json stage.wav

  # Include the full spectrum arrays and a spectrogram
  sonido-resonance analyze --include-spectrum --spectrogram -o yaml stage.wav`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := analysisConfig(opts.v)
			if err != nil {
				return err
			}

			analyzer, err := analysis.NewAnalyzer(config)
			if err != nil {
				return err
			}

			decoder := transcode.NewDecoder(decoderConfig(config))
			audio, err := decoder.DecodeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			opts.logger.Debug("Decoded input", logging.Fields{
				"file":        args[0],
				"sample_rate": audio.SampleRate,
				"samples":     audio.Samples(),
			})

			result, err := analyzer.AnalyzeAudio(audio)
			if err != nil {
				return err
			}

			report := newAnalysisReport(result, includeSpectrum)
			return render(cmd.OutOrStdout(), opts.outputFormat(), report, report.writeTable)
		},
	}

	addAnalysisFlags(cmd.Flags())
	cmd.Flags().BoolVar(&includeSpectrum, "include-spectrum", false,
		"include frequency, SPL and PSD arrays in json/yaml output")

	return cmd
}

// decoderConfig applies the analysis duration limit to the default decoder settings
func decoderConfig(config analysis.Config) *transcode.DecoderConfig {
	decoder := transcode.DefaultDecoderConfig()
	decoder.MaxDuration = time.Duration(config.MaxDuration * float64(time.Second))
	return decoder
}
