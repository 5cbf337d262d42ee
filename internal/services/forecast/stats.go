package forecast

import "math"

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// meanStd returns the mean and population standard deviation in one pass.
func meanStd(values []float64) (float64, float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	sum2 := 0.0
	for _, v := range values {
		sum += v
		sum2 += v * v
	}
	m := sum / float64(n)
	variance := sum2/float64(n) - m*m
	if variance < 0 {
		variance = 0
	}
	return m, math.Sqrt(variance)
}

func stdDev(values []float64) float64 {
	_, std := meanStd(values)
	return std
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
