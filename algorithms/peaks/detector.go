package peaks

import (
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-resonance/algorithms/common"
	"github.com/RyanBlaney/sonido-resonance/algorithms/stats"
	"github.com/RyanBlaney/sonido-resonance/logging"
)

// MinBins is the shortest spectrum that can hold an interior local maximum
const MinBins = 3

// ResonancePeak is a selected local maximum of an SPL spectrum
type ResonancePeak struct {
	FrequencyIndex  int     `json:"frequency_index" yaml:"frequency_index"`
	CenterFrequency float64 `json:"center_frequency" yaml:"center_frequency"` // Hz, bin centre
	// InterpolatedFrequency refines CenterFrequency with a parabola through the
	// neighbouring bins
	InterpolatedFrequency float64 `json:"interpolated_frequency" yaml:"interpolated_frequency"`
	PeakSPL               float64 `json:"peak_spl" yaml:"peak_spl"`     // dB
	Prominence            float64 `json:"prominence" yaml:"prominence"` // dB
	Rank                  int     `json:"rank" yaml:"rank"`             // 1-based, ascending frequency
}

// DetectionResult holds the selected peaks in rank order and the thresholds that produced them
type DetectionResult struct {
	Peaks      []ResonancePeak `json:"peaks" yaml:"peaks"`
	Statistics Statistics      `json:"statistics" yaml:"statistics"`
	Params     Params          `json:"params" yaml:"params"`
	// MinHeight is the height threshold applied, explicit or automatic
	MinHeight    float64 `json:"min_height" yaml:"min_height"`
	DistanceBins int     `json:"distance_bins" yaml:"distance_bins"`
	Candidates   int     `json:"candidates" yaml:"candidates"` // local maxima before filtering
}

// Detector finds resonance peaks in SPL spectra
type Detector struct {
	params      Params
	percentiles *stats.Percentiles
	logger      logging.Logger
}

// NewDetector creates a detector with fixed parameters
func NewDetector(params Params) *Detector {
	return &Detector{
		params:      params,
		percentiles: stats.NewPercentiles(),
		logger: logging.WithFields(logging.Fields{
			"component": "resonance_detector",
		}),
	}
}

// Params returns the detector parameters
func (d *Detector) Params() Params {
	return d.params
}

// Detect runs a one-off detection with the given parameters
func Detect(frequencies, splDB []float64, params Params) (*DetectionResult, error) {
	return NewDetector(params).Detect(frequencies, splDB)
}

type candidate struct {
	index      int
	spl        float64
	prominence float64
}

// Detect selects resonance peaks from a uniformly spaced spectrum:
// local maxima (plateaus resolved to their midpoint) are filtered by height
// and prominence, thinned so no two are closer than MinDistance (the louder
// one survives), capped to the MaxPeaks most prominent, and ranked by
// ascending frequency. Finding no peaks is not an error.
func (d *Detector) Detect(frequencies, splDB []float64) (*DetectionResult, error) {
	if err := d.validate(frequencies, splDB); err != nil {
		d.logger.Error(err, "Rejected spectrum")
		return nil, err
	}

	resolution := frequencies[1] - frequencies[0]
	distanceBins := max(1, int(math.Round(d.params.MinDistance/resolution)))

	minHeight, err := d.heightThreshold(splDB)
	if err != nil {
		return nil, err
	}

	maxima := localMaxima(splDB)

	var survivors []candidate
	for _, i := range maxima {
		c := candidate{index: i, spl: splDB[i], prominence: prominence(splDB, i)}
		if c.spl < minHeight || c.prominence < d.params.MinProminence {
			continue
		}
		survivors = append(survivors, c)
	}
	filtered := len(survivors)

	survivors = enforceDistance(survivors, distanceBins)
	spaced := len(survivors)

	if len(survivors) > d.params.MaxPeaks {
		sort.Slice(survivors, func(a, b int) bool {
			return byProminence(survivors[a], survivors[b])
		})
		survivors = survivors[:d.params.MaxPeaks]
	}

	sort.Slice(survivors, func(a, b int) bool {
		return survivors[a].index < survivors[b].index
	})

	peaks := make([]ResonancePeak, len(survivors))
	for rank, c := range survivors {
		peaks[rank] = ResonancePeak{
			FrequencyIndex:        c.index,
			CenterFrequency:       frequencies[c.index],
			InterpolatedFrequency: frequencies[c.index] + parabolicOffset(splDB, c.index)*resolution,
			PeakSPL:               c.spl,
			Prominence:            c.prominence,
			Rank:                  rank + 1,
		}
	}

	d.logger.Debug("Resonance peaks detected", logging.Fields{
		"bins":          len(splDB),
		"min_height":    minHeight,
		"distance_bins": distanceBins,
		"candidates":    len(maxima),
		"filtered":      filtered,
		"spaced":        spaced,
		"selected":      len(peaks),
	})

	return &DetectionResult{
		Peaks:        peaks,
		Statistics:   computeStatistics(peaks),
		Params:       d.params,
		MinHeight:    minHeight,
		DistanceBins: distanceBins,
		Candidates:   len(maxima),
	}, nil
}

// Empty returns the result for a spectrum too short to hold a peak: no peaks,
// zero statistics and the height threshold the spectrum would have been held to
func (d *Detector) Empty(splDB []float64) *DetectionResult {
	result := &DetectionResult{
		Peaks:        []ResonancePeak{},
		Statistics:   computeStatistics(nil),
		Params:       d.params,
		DistanceBins: 1,
	}
	if height, err := d.heightThreshold(splDB); err == nil {
		result.MinHeight = height
	}
	return result
}

func (d *Detector) validate(frequencies, splDB []float64) error {
	if err := d.params.Validate(); err != nil {
		return err
	}
	if len(frequencies) != len(splDB) {
		return fmt.Errorf("frequencies (%d) and spl (%d) lengths differ: %w",
			len(frequencies), len(splDB), ErrInvalidParameter)
	}
	if len(splDB) < MinBins {
		return fmt.Errorf("need at least 3 bins to find an interior maximum, got %d: %w",
			len(splDB), ErrInvalidParameter)
	}
	if spacing := frequencies[1] - frequencies[0]; !(spacing > 0) || math.IsInf(spacing, 0) {
		return fmt.Errorf("frequency spacing must be positive, got %v: %w", spacing, ErrInvalidParameter)
	}
	for i, v := range splDB {
		if math.IsNaN(v) {
			return fmt.Errorf("spl bin %d is NaN: %w", i, ErrInvalidParameter)
		}
	}
	return nil
}

// heightThreshold returns the explicit MinHeight or median + 1.5*std of the spectrum
func (d *Detector) heightThreshold(splDB []float64) (float64, error) {
	if d.params.MinHeight != nil {
		return *d.params.MinHeight, nil
	}

	median, err := d.percentiles.Median(splDB)
	if err != nil {
		return 0, fmt.Errorf("failed to compute median: %w", err)
	}

	return median + AutoHeightFactor*common.PopStandardDeviation(splDB), nil
}

// enforceDistance visits candidates loudest first and drops any that lie
// within distanceBins of one already kept. The result is in priority order.
func enforceDistance(candidates []candidate, distanceBins int) []candidate {
	if distanceBins <= 1 || len(candidates) < 2 {
		return candidates
	}

	ordered := make([]candidate, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(a, b int) bool {
		return byLevel(ordered[a], ordered[b])
	})

	kept := make([]candidate, 0, len(ordered))
	for _, c := range ordered {
		tooClose := false
		for _, k := range kept {
			if abs(c.index-k.index) < distanceBins {
				tooClose = true
				break
			}
		}
		if !tooClose {
			kept = append(kept, c)
		}
	}

	return kept
}

// byLevel orders by SPL, then prominence, descending; lower index wins ties
func byLevel(a, b candidate) bool {
	if a.spl != b.spl {
		return a.spl > b.spl
	}
	if a.prominence != b.prominence {
		return a.prominence > b.prominence
	}
	return a.index < b.index
}

// byProminence orders by prominence, then SPL, descending; lower index wins ties
func byProminence(a, b candidate) bool {
	if a.prominence != b.prominence {
		return a.prominence > b.prominence
	}
	if a.spl != b.spl {
		return a.spl > b.spl
	}
	return a.index < b.index
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
