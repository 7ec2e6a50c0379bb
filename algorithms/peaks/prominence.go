package peaks

// localMaxima returns interior indices strictly higher than both neighbours.
// A flat top is reported once, at its midpoint (rounded down); plateaus that
// touch either end of x are not peaks.
func localMaxima(x []float64) []int {
	var maxima []int

	last := len(x) - 1
	for i := 1; i < last; i++ {
		if !(x[i-1] < x[i]) {
			continue
		}

		ahead := i + 1
		for ahead < last && x[ahead] == x[i] {
			ahead++
		}

		if x[ahead] < x[i] {
			maxima = append(maxima, (i+ahead-1)/2)
			i = ahead
		}
	}

	return maxima
}

// prominence measures how far x[peak] stands above the higher of its two
// bases. Each base is the minimum of x between the peak and the first strictly
// higher sample on that side, or the array edge.
func prominence(x []float64, peak int) float64 {
	height := x[peak]

	leftBase := height
	for i := peak - 1; i >= 0 && x[i] <= height; i-- {
		leftBase = min(leftBase, x[i])
	}

	rightBase := height
	for i := peak + 1; i < len(x) && x[i] <= height; i++ {
		rightBase = min(rightBase, x[i])
	}

	return height - max(leftBase, rightBase)
}

// parabolicOffset returns the sub-bin offset in [-0.5, 0.5] of the vertex of
// the parabola through x[i-1], x[i], x[i+1]
func parabolicOffset(x []float64, i int) float64 {
	if i <= 0 || i >= len(x)-1 {
		return 0
	}

	y1, y2, y3 := x[i-1], x[i], x[i+1]
	denom := y1 - 2*y2 + y3
	if denom == 0 {
		return 0
	}

	return max(-0.5, min(0.5, 0.5*(y1-y3)/denom))
}
