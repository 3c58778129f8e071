package analysis

import "math"

// Mean computes the average of a slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// Std computes the sample standard deviation (n-1 denominator) of a slice.
// Fewer than two values give 0.
func Std(x []float64) float64 {
	n := float64(len(x))
	if n < 2 {
		return 0
	}
	mean := Mean(x)
	sumSq := 0.0
	for _, v := range x {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / (n - 1))
}
