package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-resonance/analysis"
	"github.com/RyanBlaney/sonido-resonance/transcode"
)

func newBatchCommand(opts *options) *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "batch [flags] <dir | files...>",
		Short: "Analyze many recordings and compare their resonances",
		Long: `Analyze every WAV file below a directory, or an explicit list of files,
in parallel and print a cross-file comparison. A file that fails to decode or
analyze is reported and does not stop the batch.

Examples:
  # Every .wav below data/, four at a time, first two seconds of each
  sonido-resonance batch --workers 4 --max-duration 2 data/

  # Explicit files with per-file peak lists
  sonido-resonance batch --details -o json S1R1/a.wav S1R2/a.wav`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := analysisConfig(opts.v)
			if err != nil {
				return err
			}

			analyzer, err := analysis.NewAnalyzer(config)
			if err != nil {
				return err
			}
			batch := analysis.NewBatch(analyzer, transcode.NewDecoder(decoderConfig(config)))

			var items []analysis.Item
			if len(args) == 1 && isDir(args[0]) {
				items, err = batch.Directory(cmd.Context(), args[0])
			} else {
				items, err = batch.Run(cmd.Context(), args)
			}
			if err != nil {
				return err
			}

			report := newBatchReport(items, details)
			if err := render(cmd.OutOrStdout(), opts.outputFormat(), report, report.writeTable); err != nil {
				return err
			}

			if report.Summary.Succeeded == 0 {
				return fmt.Errorf("all %d files failed", report.Summary.Files)
			}
			return nil
		},
	}

	addAnalysisFlags(cmd.Flags())
	cmd.Flags().BoolVar(&details, "details", false,
		"include every file's peaks in the output")

	return cmd
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
