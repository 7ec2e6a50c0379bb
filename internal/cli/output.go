package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-resonance/algorithms/peaks"
	"github.com/RyanBlaney/sonido-resonance/algorithms/spectral"
	"github.com/RyanBlaney/sonido-resonance/algorithms/stats"
	"github.com/RyanBlaney/sonido-resonance/algorithms/windowing"
	"github.com/RyanBlaney/sonido-resonance/analysis"
	"github.com/RyanBlaney/sonido-resonance/transcode"
)

// render writes v as json or yaml, or hands a tabwriter to table
func render(w io.Writer, format string, v any, table func(*tabwriter.Writer)) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil

	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return encoder.Close()

	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

// detectionReport is a DetectionResult without the echoed parameters
type detectionReport struct {
	MinHeight     float64               `json:"min_height" yaml:"min_height"`
	MinProminence float64               `json:"min_prominence" yaml:"min_prominence"`
	DistanceBins  int                   `json:"distance_bins" yaml:"distance_bins"`
	Candidates    int                   `json:"candidates" yaml:"candidates"`
	Peaks         []peaks.ResonancePeak `json:"peaks" yaml:"peaks"`
	Statistics    peaks.Statistics      `json:"statistics" yaml:"statistics"`
}

type analysisReport struct {
	Source        *transcode.AudioMetadata    `json:"source,omitempty" yaml:"source,omitempty"`
	Signal        analysis.SignalSummary      `json:"signal" yaml:"signal"`
	Plan          spectral.ResolutionPlan     `json:"plan" yaml:"plan"`
	Window        windowing.Type              `json:"window" yaml:"window"`
	Bins          int                         `json:"bins" yaml:"bins"`
	PeakFrequency float64                     `json:"peak_frequency" yaml:"peak_frequency"`
	PeakSPL       float64                     `json:"peak_spl" yaml:"peak_spl"`
	SPL           stats.DistributionSummary   `json:"spl" yaml:"spl"`
	Detection     detectionReport             `json:"detection" yaml:"detection"`
	Spectrum      *spectral.SpectrumResult    `json:"spectrum,omitempty" yaml:"spectrum,omitempty"`
	Phase         *spectral.PhaseResult       `json:"phase,omitempty" yaml:"phase,omitempty"`
	Spectrogram   *spectral.SpectrogramResult `json:"spectrogram,omitempty" yaml:"spectrogram,omitempty"`
	ElapsedMs     float64                     `json:"elapsed_ms" yaml:"elapsed_ms"`
}

func newAnalysisReport(result *analysis.Result, includeSpectrum bool) analysisReport {
	report := analysisReport{
		Source:        result.Source,
		Signal:        result.Signal,
		Plan:          result.Plan(),
		Window:        result.Spectrum.Window,
		Bins:          result.Spectrum.Bins(),
		PeakFrequency: result.Spectrum.PeakFrequency,
		PeakSPL:       result.Spectrum.PeakSPL,
		SPL:           result.SPL,
		Detection: detectionReport{
			MinHeight:     result.Detection.MinHeight,
			MinProminence: result.Detection.Params.MinProminence,
			DistanceBins:  result.Detection.DistanceBins,
			Candidates:    result.Detection.Candidates,
			Peaks:         result.Detection.Peaks,
			Statistics:    result.Detection.Statistics,
		},
		Phase:       result.Phase,
		Spectrogram: result.Spectrogram,
		ElapsedMs:   float64(result.Elapsed.Microseconds()) / 1000,
	}
	if includeSpectrum {
		report.Spectrum = result.Spectrum
	}
	return report
}

func (r analysisReport) writeTable(w *tabwriter.Writer) {
	if r.Source != nil {
		fmt.Fprintf(w, "File\t%s\n", r.Source.Path)
		fmt.Fprintf(w, "Codec\t%s (%d ch, %s decoder)\n", r.Source.Codec, r.Source.Channels, r.Source.Decoder)
	}
	fmt.Fprintf(w, "Duration\t%.3f s (%d samples @ %d Hz)\n", r.Signal.Duration, r.Signal.Samples, r.Signal.SampleRate)
	fmt.Fprintf(w, "RMS\t%.6g Pa\n", r.Signal.RMS)

	resolution := fmt.Sprintf("%.6g Hz (target %g Hz, FFT %d, %s window)",
		r.Plan.ActualResolution, r.Plan.TargetResolution, r.Plan.FFTLength, r.Window)
	if r.Plan.Degraded() {
		resolution += " degraded"
	}
	fmt.Fprintf(w, "Resolution\t%s\n", resolution)
	fmt.Fprintf(w, "Spectrum peak\t%.3f Hz at %.2f dB SPL\n", r.PeakFrequency, r.PeakSPL)
	fmt.Fprintf(w, "SPL median\t%.2f dB (p10 %.2f, p90 %.2f)\n", r.SPL.Median, r.SPL.P10, r.SPL.P90)
	fmt.Fprintf(w, "Thresholds\theight %.2f dB, prominence %.2f dB, distance %d bins\n",
		r.Detection.MinHeight, r.Detection.MinProminence, r.Detection.DistanceBins)
	fmt.Fprintf(w, "Peaks\t%d of %d candidates\n", len(r.Detection.Peaks), r.Detection.Candidates)

	if len(r.Detection.Peaks) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "RANK\tFREQ (Hz)\tINTERP (Hz)\tSPL (dB)\tPROMINENCE (dB)")
	for _, p := range r.Detection.Peaks {
		fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%.2f\t%.2f\n",
			p.Rank, p.CenterFrequency, p.InterpolatedFrequency, p.PeakSPL, p.Prominence)
	}
}

// fileDetail lists one file's peaks when --details is given
type fileDetail struct {
	Path  string                `json:"path" yaml:"path"`
	Peaks []peaks.ResonancePeak `json:"peaks" yaml:"peaks"`
}

type batchReport struct {
	Summary *analysis.BatchSummary `json:"summary" yaml:"summary"`
	Details []fileDetail           `json:"details,omitempty" yaml:"details,omitempty"`
}

func newBatchReport(items []analysis.Item, details bool) batchReport {
	report := batchReport{Summary: analysis.Summarize(items)}
	if !details {
		return report
	}

	for _, item := range items {
		if !item.OK() {
			continue
		}
		report.Details = append(report.Details, fileDetail{
			Path:  item.Path,
			Peaks: item.Result.Detection.Peaks,
		})
	}
	return report
}

func (r batchReport) writeTable(w *tabwriter.Writer) {
	s := r.Summary

	fmt.Fprintln(w, "FILE\tGROUP\tDURATION (s)\tRES (Hz)\tPEAK (Hz)\tSPL (dB)\tPEAKS\tSTATUS")
	for _, e := range s.Entries {
		if !e.OK {
			fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t-\t-\t%s\n", e.Path, e.Group, e.Error)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.3f\t%.4g\t%.3f\t%.2f\t%d\tok\n",
			e.Path, e.Group, e.Duration, e.Resolution, e.PeakFrequency, e.PeakSPL, e.PeakCount)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "GROUP\tFILES\tOK\tMEAN PEAK (Hz)\tMEAN PEAKS")
	for _, g := range s.Groups {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.3f\t%.1f\n", g.Name, g.Files, g.Succeeded, g.MeanPeakFrequency, g.MeanPeakCount)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Files\t%d (%d ok, %d failed, %.0f%%)\n", s.Files, s.Succeeded, s.Failed, s.SuccessRate*100)
	if s.PeakFrequency != nil {
		fmt.Fprintf(w, "Peak frequency\tmedian %.3f Hz (min %.3f, max %.3f)\n",
			s.PeakFrequency.Median, s.PeakFrequency.Min, s.PeakFrequency.Max)
	}

	for _, d := range r.Details {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s\n", d.Path)
		for _, p := range d.Peaks {
			fmt.Fprintf(w, "  %d\t%.3f Hz\t%.2f dB\t%.2f dB\n", p.Rank, p.CenterFrequency, p.PeakSPL, p.Prominence)
		}
	}
}
