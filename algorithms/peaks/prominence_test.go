package peaks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalMaxima(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		want []int
	}{
		{"single", []float64{0, 1, 0}, []int{1}},
		{"odd plateau midpoint", []float64{0, 2, 2, 2, 0}, []int{2}},
		{"even plateau rounds down", []float64{0, 2, 2, 0}, []int{1}},
		{"plateau at edge", []float64{0, 1, 1}, nil},
		{"edge maximum ignored", []float64{3, 1, 0}, nil},
		{"shoulder then rise", []float64{1, 2, 2, 3, 1}, []int{3}},
		{"several", []float64{0, 4, 1, 5, 5, 0, 2, 0}, []int{1, 3, 6}},
		{"too short", []float64{1, 2}, nil},
		{"flat", []float64{7, 7, 7, 7}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, localMaxima(tt.x))
		})
	}
}

func TestProminence(t *testing.T) {
	x := []float64{0, 5, 1, 3, 2, 10, 0}

	// right scan of 5 stops at 10, lowest point on the way is 1
	assert.Equal(t, 4.0, prominence(x, 1))
	// 3 is bounded by 5 on the left (base 1) and 10 on the right (base 2)
	assert.Equal(t, 1.0, prominence(x, 3))
	// the global maximum scans to both edges
	assert.Equal(t, 10.0, prominence(x, 5))
}

func TestProminenceSeesThroughEqualPeaks(t *testing.T) {
	x := []float64{0, 20, 5, 5, 20, 3}
	assert.Equal(t, 17.0, prominence(x, 1))
	assert.Equal(t, 17.0, prominence(x, 4))
}

func TestParabolicOffset(t *testing.T) {
	assert.Equal(t, 0.0, parabolicOffset([]float64{1, 3, 1}, 1))
	assert.Greater(t, parabolicOffset([]float64{1, 3, 2}, 1), 0.0)
	assert.Less(t, parabolicOffset([]float64{2, 3, 1}, 1), 0.0)
	assert.Equal(t, 0.0, parabolicOffset([]float64{1, 3, 1}, 0))

	// exact parabola y = -(x-1.25)^2 sampled at 0,1,2
	y := func(x float64) float64 { return -(x - 1.25) * (x - 1.25) }
	assert.InDelta(t, 0.25, parabolicOffset([]float64{y(0), y(1), y(2)}, 1), 1e-12)
}
