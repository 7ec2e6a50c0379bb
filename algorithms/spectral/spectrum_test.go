package spectral

import (
	"errors"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-resonance/algorithms/windowing"
)

func generateSine(freq, amplitude float64, sampleRate, n int) []float64 {
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return signal
}

func generateCosine(freq, amplitude float64, sampleRate, n int) []float64 {
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = amplitude * math.Cos(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return signal
}

func generateNoise(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = rng.NormFloat64() + 0.3 // offset exercises DC removal
	}
	return signal
}

func TestEstimateBinLayout(t *testing.T) {
	for _, n := range []int{2, 7, 64, 1001, 4410} {
		for _, w := range windowing.Types() {
			sampleRate := 8000
			e := NewEstimator(float64(sampleRate)/float64(n), w)

			result, err := e.Estimate(generateNoise(int64(n), n), sampleRate)
			require.NoError(t, err)

			bins := n/2 + 1
			require.Len(t, result.Frequencies, bins, "n=%d window=%s", n, w)
			require.Len(t, result.SPLdB, bins)
			require.Len(t, result.PSD, bins)
			assert.Equal(t, n, result.Plan.FFTLength)
			assert.Equal(t, 0.0, result.Frequencies[0])

			spacing := float64(sampleRate) / float64(n)
			for k := 1; k < bins; k++ {
				assert.InDelta(t, spacing, result.Frequencies[k]-result.Frequencies[k-1], 1e-9)
			}
			assert.Equal(t, w, result.Window)
			assert.Equal(t, sampleRate, result.SampleRate)
		}
	}
}

func TestEstimateParseval(t *testing.T) {
	const n = 1001
	signal := generateNoise(42, n)

	e := NewEstimator(1.0, windowing.Rectangular)
	result, err := e.Estimate(signal, n)
	require.NoError(t, err)
	require.Equal(t, n, result.Plan.FFTLength)

	mean := 0.0
	for _, v := range signal {
		mean += v
	}
	mean /= n

	meanSquare := 0.0
	for _, v := range signal {
		meanSquare += (v - mean) * (v - mean)
	}
	meanSquare /= n

	assert.InEpsilon(t, meanSquare, result.TotalPower(), 1e-7)
}

func TestEstimateSineLevel(t *testing.T) {
	const (
		sampleRate = 8000
		n          = 8000
	)

	// 1 Pa amplitude on an exact bin: p_rms = 1/sqrt(2)
	e := NewEstimator(1.0, windowing.Rectangular)
	result, err := e.Estimate(generateSine(1000, 1.0, sampleRate, n), sampleRate)
	require.NoError(t, err)

	assert.InDelta(t, 1000.0, result.PeakFrequency, 1e-9)
	assert.InDelta(t, 20*math.Log10(math.Sqrt(0.5)/ReferencePressure), result.PeakSPL, 1e-6)
	assert.InDelta(t, 0.5, result.PSD[1000], 1e-7)
}

func TestEstimateAllZeroSignal(t *testing.T) {
	e := NewEstimator(1.0, windowing.Hann)
	result, err := e.Estimate(make([]float64, 512), 512)
	require.NoError(t, err)

	floor := 20 * math.Log10(math.Sqrt(PSDFloor*result.Plan.ActualResolution)/ReferencePressure)
	for k, v := range result.SPLdB {
		assert.InDelta(t, floor, v, 1e-9, "bin %d", k)
		assert.Equal(t, 0.0, result.PSD[k])
	}
	assert.Equal(t, 0.0, result.PeakFrequency)
}

func TestEstimateSingleSample(t *testing.T) {
	e := NewEstimator(1.0, windowing.Hann)
	result, err := e.Estimate([]float64{0.7}, 44100)
	require.NoError(t, err)

	require.Len(t, result.Frequencies, 1)
	assert.Equal(t, 0.0, result.Frequencies[0])
	assert.True(t, result.Plan.Capped)
}

func TestEstimateDegenerateWindowFloors(t *testing.T) {
	// two-point Hann window is all zeros
	e := NewEstimator(4000, windowing.Hann)
	result, err := e.Estimate([]float64{1, -1}, 8000)
	require.NoError(t, err)

	for _, v := range result.PSD {
		assert.Equal(t, 0.0, v)
	}
	for _, v := range result.SPLdB {
		assert.False(t, math.IsNaN(v))
	}
}

func TestEstimateWithPlanZeroPads(t *testing.T) {
	const sampleRate = 1000
	signal := generateSine(125, 1.0, sampleRate, 100)
	original := slices.Clone(signal)

	e := NewEstimator(1.0, windowing.Hann)
	result, err := e.EstimateWithPlan(signal, sampleRate, ResolutionPlan{FFTLength: 400})
	require.NoError(t, err)

	assert.Len(t, result.Frequencies, 201)
	assert.InDelta(t, 2.5, result.Plan.ActualResolution, 1e-12)
	assert.InDelta(t, 125.0, result.PeakFrequency, 5.0)
	assert.Equal(t, original, signal)
}

func TestEstimateWithPlanTruncates(t *testing.T) {
	e := NewEstimator(1.0, windowing.Blackman)
	result, err := e.EstimateWithPlan(generateNoise(3, 1000), 1000, ResolutionPlan{FFTLength: 100})
	require.NoError(t, err)
	assert.Len(t, result.Frequencies, 51)
}

func TestEstimateDoesNotMutateInput(t *testing.T) {
	signal := generateNoise(7, 2048)
	original := slices.Clone(signal)

	_, err := NewEstimator(1.0, windowing.Hamming).Estimate(signal, 2048)
	require.NoError(t, err)
	assert.Equal(t, original, signal)
}

func TestEstimateErrors(t *testing.T) {
	e := NewEstimator(1.0, windowing.Hann)

	_, err := e.Estimate(nil, 8000)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	_, err = e.Estimate([]float64{1, 2, 3}, 0)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	_, err = NewEstimator(-1, windowing.Hann).Estimate([]float64{1, 2, 3}, 8000)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	_, err = NewEstimator(1, windowing.Type(99)).Estimate([]float64{1, 2, 3}, 8000)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	_, err = e.EstimateWithPlan([]float64{1, 2, 3}, 8000, ResolutionPlan{})
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}

func TestTruncate(t *testing.T) {
	const sampleRate = 8000
	signal := generateSine(3000, 1.0, sampleRate, sampleRate)
	for i, v := range generateSine(500, 0.1, sampleRate, sampleRate) {
		signal[i] += v
	}

	result, err := NewEstimator(1.0, windowing.Hann).Estimate(signal, sampleRate)
	require.NoError(t, err)
	require.InDelta(t, 3000.0, result.PeakFrequency, 1e-9)

	cut := result.Truncate(2000)
	assert.Len(t, cut.Frequencies, 2001)
	assert.Len(t, cut.SPLdB, 2001)
	assert.Len(t, cut.PSD, 2001)
	assert.Equal(t, 2000.0, cut.Frequencies[2000])
	assert.InDelta(t, 500.0, cut.PeakFrequency, 1e-9)
	assert.Less(t, cut.PeakSPL, result.PeakSPL)

	// original untouched
	assert.Len(t, result.Frequencies, 4001)
	assert.InDelta(t, 3000.0, result.PeakFrequency, 1e-9)

	whole := result.Truncate(0)
	assert.Equal(t, result.Frequencies, whole.Frequencies)
	assert.Equal(t, result.PeakSPL, whole.PeakSPL)
}

func TestPhase(t *testing.T) {
	const (
		sampleRate = 8000
		n          = 8000
	)
	e := NewEstimator(1.0, windowing.Rectangular)

	cos, err := e.Phase(generateCosine(1000, 1.0, sampleRate, n), sampleRate)
	require.NoError(t, err)
	require.Len(t, cos.PhaseDegrees, n/2+1)
	assert.InDelta(t, 0.0, cos.PhaseDegrees[1000], 1e-4)
	assert.Equal(t, 1000.0, cos.Frequencies[1000])

	sin, err := e.Phase(generateSine(1000, 1.0, sampleRate, n), sampleRate)
	require.NoError(t, err)
	assert.InDelta(t, -90.0, sin.PhaseDegrees[1000], 1e-4)

	for _, d := range sin.PhaseDegrees {
		assert.LessOrEqual(t, math.Abs(d), 180.0)
	}
}

func TestPhaseTruncate(t *testing.T) {
	e := NewEstimator(1.0, windowing.Hann)
	phase, err := e.Phase(generateSine(100, 1.0, 1000, 1000), 1000)
	require.NoError(t, err)

	cut := phase.Truncate(250)
	require.Len(t, cut.Frequencies, 251)
	require.Len(t, cut.PhaseDegrees, 251)
	assert.Equal(t, 250.0, cut.Frequencies[250])
	assert.Equal(t, phase.PhaseDegrees[:251], cut.PhaseDegrees)

	assert.Len(t, phase.Truncate(-1).Frequencies, len(phase.Frequencies))
}
