package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-resonance/algorithms/common"
)

// DistributionSummary describes the level distribution of a spectrum
type DistributionSummary struct {
	Count  int     `json:"count" yaml:"count"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"` // population (ddof=0)
	P10    float64 `json:"p10" yaml:"p10"`
	Median float64 `json:"median" yaml:"median"`
	P90    float64 `json:"p90" yaml:"p90"`
}

// Percentiles computes order statistics over float slices.
//
// References:
//   - Hyndman, R.J., Fan, Y. (1996). "Sample Quantiles in Statistical Packages"
//     The American Statistician, 50(4), 361-365
type Percentiles struct{}

// NewPercentiles creates a percentile calculator using linear interpolation
// between closest ranks (R-7, the numpy default)
func NewPercentiles() *Percentiles {
	return &Percentiles{}
}

// Median returns the 50th percentile, averaging the two middle values of an
// even-length input
func (p *Percentiles) Median(data []float64) (float64, error) {
	return p.CalculatePercentile(data, 50)
}

// CalculatePercentile computes a single percentile value (0..100)
func (p *Percentiles) CalculatePercentile(data []float64, percentile float64) (float64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty data: %w", common.ErrInvalidParameter)
	}

	if percentile < 0 || percentile > 100 || math.IsNaN(percentile) {
		return 0, fmt.Errorf("percentile must be between 0 and 100, got %v: %w", percentile, common.ErrInvalidParameter)
	}

	return p.calculatePercentile(sortedCopy(data), percentile), nil
}

// Summarize computes a DistributionSummary in one sort
func (p *Percentiles) Summarize(data []float64) (DistributionSummary, error) {
	if len(data) == 0 {
		return DistributionSummary{}, fmt.Errorf("empty data: %w", common.ErrInvalidParameter)
	}

	values := sortedCopy(data)
	mean, std := common.PopMeanStdDev(values)

	return DistributionSummary{
		Count:  len(values),
		Min:    values[0],
		Max:    values[len(values)-1],
		Mean:   mean,
		StdDev: std,
		P10:    p.calculatePercentile(values, 10),
		Median: p.calculatePercentile(values, 50),
		P90:    p.calculatePercentile(values, 90),
	}, nil
}

func sortedCopy(data []float64) []float64 {
	values := make([]float64, len(data))
	copy(values, data)
	sort.Float64s(values)
	return values
}

// calculatePercentile expects sorted, non-empty data
func (p *Percentiles) calculatePercentile(sortedData []float64, percentile float64) float64 {
	if len(sortedData) == 1 {
		return sortedData[0]
	}
	return p.linearInterpolation(sortedData, percentile/100.0)
}

// position returns the zero-based fractional rank (n-1)*q
func (p *Percentiles) position(data []float64, q float64) float64 {
	return float64(len(data)-1) * q
}

// linearInterpolation implements linear interpolation between closest ranks
// Formula: h = (n-1) * q, value = x[floor(h)] + frac(h) * (x[ceil(h)] - x[floor(h)])
func (p *Percentiles) linearInterpolation(data []float64, q float64) float64 {
	h := p.position(data, q)

	lower := int(math.Floor(h))
	upper := int(math.Ceil(h))

	if lower == upper {
		return data[lower]
	}

	fraction := h - float64(lower)
	return data[lower] + fraction*(data[upper]-data[lower])
}
