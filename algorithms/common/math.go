package common

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidParameter is returned by every algorithm package when a caller
// passes a value outside the documented domain.
var ErrInvalidParameter = errors.New("invalid parameter")

// Basic statistical functions used across algorithms using gonum for robustness

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// PopStandardDeviation calculates the population (ddof=0) standard deviation
func PopStandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.PopStdDev(data, nil)
}

// PopMeanStdDev returns mean and population standard deviation in one pass
func PopMeanStdDev(data []float64) (mean, std float64) {
	switch len(data) {
	case 0:
		return 0, 0
	case 1:
		return data[0], 0
	}
	return stat.PopMeanStdDev(data, nil)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}

// PeakAmplitude returns max(|x|)
func PeakAmplitude(data []float64) float64 {
	peak := 0.0
	for _, v := range data {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// RemoveDC returns a copy of data with its mean subtracted. The input is left untouched.
func RemoveDC(data []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	if len(out) == 0 {
		return out
	}
	floats.AddConst(-Mean(data), out)
	return out
}

// FitLength returns data truncated or zero-padded to exactly n samples
func FitLength(data []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, data)
	return out
}

// ArgMax returns the index and value of the first maximum, or (-1, NaN) for empty input
func ArgMax(data []float64) (int, float64) {
	if len(data) == 0 {
		return -1, math.NaN()
	}
	idx := floats.MaxIdx(data)
	return idx, data[idx]
}

// MinMax returns the smallest and largest value of data
func MinMax(data []float64) (lo, hi float64) {
	if len(data) == 0 {
		return 0, 0
	}
	return floats.Min(data), floats.Max(data)
}

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PrevPowerOfTwo finds the largest power of 2 <= n (1 for n < 1)
func PrevPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}

	power := 1
	for power<<1 <= n {
		power <<= 1
	}
	return power
}
