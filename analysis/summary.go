package analysis

import (
	"path/filepath"
	"sort"

	"github.com/RyanBlaney/sonido-resonance/algorithms/common"
	"github.com/RyanBlaney/sonido-resonance/algorithms/stats"
)

// FileSummary is the per-file row of a batch comparison
type FileSummary struct {
	Path              string  `json:"path" yaml:"path"`
	Group             string  `json:"group" yaml:"group"` // parent directory name
	OK                bool    `json:"ok" yaml:"ok"`
	Error             string  `json:"error,omitempty" yaml:"error,omitempty"`
	Duration          float64 `json:"duration" yaml:"duration"`
	SampleRate        int     `json:"sample_rate" yaml:"sample_rate"`
	Resolution        float64 `json:"resolution" yaml:"resolution"`
	PeakFrequency     float64 `json:"peak_frequency" yaml:"peak_frequency"`
	PeakSPL           float64 `json:"peak_spl" yaml:"peak_spl"`
	PeakCount         int     `json:"peak_count" yaml:"peak_count"`
	DominantFrequency float64 `json:"dominant_frequency,omitempty" yaml:"dominant_frequency,omitempty"`
	DominantSPL       float64 `json:"dominant_spl,omitempty" yaml:"dominant_spl,omitempty"`
}

// GroupSummary aggregates the files of one directory
type GroupSummary struct {
	Name              string  `json:"name" yaml:"name"`
	Files             int     `json:"files" yaml:"files"`
	Succeeded         int     `json:"succeeded" yaml:"succeeded"`
	MeanPeakFrequency float64 `json:"mean_peak_frequency" yaml:"mean_peak_frequency"`
	MeanPeakCount     float64 `json:"mean_peak_count" yaml:"mean_peak_count"`
}

// BatchSummary compares the files of a batch
type BatchSummary struct {
	Files       int     `json:"files" yaml:"files"`
	Succeeded   int     `json:"succeeded" yaml:"succeeded"`
	Failed      int     `json:"failed" yaml:"failed"`
	SuccessRate float64 `json:"success_rate" yaml:"success_rate"` // 0..1
	// PeakFrequency describes the spread of per-file spectral maxima; nil when nothing succeeded
	PeakFrequency *stats.DistributionSummary `json:"peak_frequency,omitempty" yaml:"peak_frequency,omitempty"`
	Entries       []FileSummary              `json:"entries" yaml:"entries"`
	Groups        []GroupSummary             `json:"groups" yaml:"groups"`
}

// Summarize builds a cross-file comparison from batch items
func Summarize(items []Item) *BatchSummary {
	summary := &BatchSummary{
		Files:   len(items),
		Entries: make([]FileSummary, 0, len(items)),
		Groups:  make([]GroupSummary, 0),
	}

	groups := make(map[string]*GroupSummary)
	groupFrequencies := make(map[string][]float64)
	groupCounts := make(map[string][]float64)
	var peakFrequencies []float64

	for _, item := range items {
		entry := summarizeItem(item)
		summary.Entries = append(summary.Entries, entry)

		group, ok := groups[entry.Group]
		if !ok {
			group = &GroupSummary{Name: entry.Group}
			groups[entry.Group] = group
		}
		group.Files++

		if !entry.OK {
			summary.Failed++
			continue
		}

		summary.Succeeded++
		group.Succeeded++
		peakFrequencies = append(peakFrequencies, entry.PeakFrequency)
		groupFrequencies[entry.Group] = append(groupFrequencies[entry.Group], entry.PeakFrequency)
		groupCounts[entry.Group] = append(groupCounts[entry.Group], float64(entry.PeakCount))
	}

	if summary.Files > 0 {
		summary.SuccessRate = float64(summary.Succeeded) / float64(summary.Files)
	}

	if len(peakFrequencies) > 0 {
		if distribution, err := stats.NewPercentiles().Summarize(peakFrequencies); err == nil {
			summary.PeakFrequency = &distribution
		}
	}

	for name, group := range groups {
		group.MeanPeakFrequency = common.Mean(groupFrequencies[name])
		group.MeanPeakCount = common.Mean(groupCounts[name])
		summary.Groups = append(summary.Groups, *group)
	}
	sort.Slice(summary.Groups, func(i, j int) bool {
		return summary.Groups[i].Name < summary.Groups[j].Name
	})

	return summary
}

func summarizeItem(item Item) FileSummary {
	entry := FileSummary{
		Path:  item.Path,
		Group: filepath.Base(filepath.Dir(item.Path)),
		OK:    item.OK(),
		Error: item.Error,
	}
	if !entry.OK {
		return entry
	}

	result := item.Result
	entry.Duration = result.Signal.Duration
	entry.SampleRate = result.Signal.SampleRate
	entry.Resolution = result.Spectrum.Plan.ActualResolution
	entry.PeakFrequency = result.Spectrum.PeakFrequency
	entry.PeakSPL = result.Spectrum.PeakSPL
	entry.PeakCount = len(result.Detection.Peaks)

	if dominant := result.Detection.Statistics.DominantPeak; dominant != nil {
		entry.DominantFrequency = dominant.CenterFrequency
		entry.DominantSPL = dominant.PeakSPL
	}
	return entry
}
