package analyzer

import "math"

// slopeEpsilon is the smallest regression denominator treated as non-zero.
const slopeEpsilon = 1e-9

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// Slope fits ys against x = 0..n-1 by ordinary least squares.
func Slope(ys []float64) float64 {
	n := float64(len(ys))
	if len(ys) < 2 {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < slopeEpsilon {
		return 0
	}
	return (n*sxy - sx*sy) / den
}

// HalfDelta returns mean(second half) - mean(first half) of a chronological
// series. With an odd length the middle element goes to the second half.
func HalfDelta(ys []float64) float64 {
	if len(ys) < 2 {
		return 0
	}
	mid := len(ys) / 2
	return Mean(ys[mid:]) - Mean(ys[:mid])
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
