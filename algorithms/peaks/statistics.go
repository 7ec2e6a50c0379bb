package peaks

import (
	"github.com/RyanBlaney/sonido-resonance/algorithms/common"
)

// Statistics summarises a set of detected peaks. Standard deviations are
// population (ddof=0) values.
type Statistics struct {
	TotalPeaks     int        `json:"total_peaks" yaml:"total_peaks"`
	FrequencyRange [2]float64 `json:"frequency_range" yaml:"frequency_range"`
	MeanFrequency  float64    `json:"mean_frequency" yaml:"mean_frequency"`
	StdFrequency   float64    `json:"std_frequency" yaml:"std_frequency"`
	SPLRange       [2]float64 `json:"spl_range" yaml:"spl_range"`
	MeanSPL        float64    `json:"mean_spl" yaml:"mean_spl"`
	StdSPL         float64    `json:"std_spl" yaml:"std_spl"`
	// DominantPeak has the highest PeakSPL, regardless of rank or prominence.
	// Nil when no peaks were found.
	DominantPeak *ResonancePeak `json:"dominant_peak" yaml:"dominant_peak"`
}

// computeStatistics returns zero values and a nil dominant peak for an empty set
func computeStatistics(peaks []ResonancePeak) Statistics {
	if len(peaks) == 0 {
		return Statistics{}
	}

	freqs := make([]float64, len(peaks))
	levels := make([]float64, len(peaks))
	for i, p := range peaks {
		freqs[i] = p.CenterFrequency
		levels[i] = p.PeakSPL
	}

	stats := Statistics{TotalPeaks: len(peaks)}

	stats.FrequencyRange[0], stats.FrequencyRange[1] = common.MinMax(freqs)
	stats.MeanFrequency, stats.StdFrequency = common.PopMeanStdDev(freqs)

	stats.SPLRange[0], stats.SPLRange[1] = common.MinMax(levels)
	stats.MeanSPL, stats.StdSPL = common.PopMeanStdDev(levels)

	idx, _ := common.ArgMax(levels)
	dominant := peaks[idx]
	stats.DominantPeak = &dominant

	return stats
}
