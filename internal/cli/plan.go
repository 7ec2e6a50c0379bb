package cli

import (
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-resonance/algorithms/spectral"
)

type planReport struct {
	SignalLength int                     `json:"signal_length" yaml:"signal_length"`
	SampleRate   int                     `json:"sample_rate" yaml:"sample_rate"`
	Plan         spectral.ResolutionPlan `json:"plan" yaml:"plan"`
	Bins         int                     `json:"bins" yaml:"bins"`
	Degraded     bool                    `json:"degraded" yaml:"degraded"`
}

func (r planReport) writeTable(w *tabwriter.Writer) {
	fmt.Fprintf(w, "Signal length\t%d samples\n", r.SignalLength)
	fmt.Fprintf(w, "Sample rate\t%d Hz\n", r.SampleRate)
	fmt.Fprintf(w, "Target resolution\t%g Hz\n", r.Plan.TargetResolution)
	fmt.Fprintf(w, "Ideal FFT length\t%d\n", r.Plan.IdealLength)
	fmt.Fprintf(w, "FFT length\t%d\n", r.Plan.FFTLength)
	fmt.Fprintf(w, "Actual resolution\t%.6g Hz\n", r.Plan.ActualResolution)
	fmt.Fprintf(w, "Bins\t%d\n", r.Bins)
	fmt.Fprintf(w, "Limited by signal\t%t\n", r.Plan.Capped)
	fmt.Fprintf(w, "Limited by ceiling\t%t\n", r.Plan.Ceiling)
}

func newPlanCommand(opts *options) *cobra.Command {
	var (
		samples    int
		duration   float64
		sampleRate int
		resolution float64
		ceiling    int
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the FFT length and resolution chosen for a signal",
		Long: `Print the resolution plan for a signal of the given length without
analyzing anything. Use it to see how long a recording must be to reach a
target resolution.

Examples:
  sonido-resonance plan --duration 2 --sample-rate 44100 --resolution 0.01
  sonido-resonance plan --samples 1000000 --sample-rate 48000 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			length := samples
			if length == 0 && duration > 0 {
				length = int(math.Round(duration * float64(sampleRate)))
			}

			plan, err := spectral.NewPlannerWithCeiling(ceiling).Plan(length, sampleRate, resolution)
			if err != nil {
				return err
			}

			report := planReport{
				SignalLength: length,
				SampleRate:   sampleRate,
				Plan:         plan,
				Bins:         plan.Bins(),
				Degraded:     plan.Degraded(),
			}
			return render(cmd.OutOrStdout(), opts.outputFormat(), report, report.writeTable)
		},
	}

	cmd.Flags().IntVar(&samples, "samples", 0, "signal length in samples")
	cmd.Flags().Float64Var(&duration, "duration", 0, "signal length in seconds (used when --samples is 0)")
	cmd.Flags().IntVar(&sampleRate, "sample-rate", 44100, "sample rate in Hz")
	cmd.Flags().Float64Var(&resolution, "resolution", 0.01, "target frequency resolution in Hz")
	cmd.Flags().IntVar(&ceiling, "max-fft-length", spectral.DefaultMaxFFTLength, "upper bound on the FFT length")

	return cmd
}
