package haar

import "math"

// iround rounds x to the nearest int, ties away from zero.
func iround(x float64) int {
	return int(math.Round(x))
}
