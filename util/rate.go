package util

import "time"

// Rate computes the per-second rate between two counter values.
func Rate(prev, curr float64, dt time.Duration) float64 {
	if dt <= 0 || curr < prev {
		return 0
	}
	return (curr - prev) / dt.Seconds()
}

// Ratio divides the growth of one counter by the growth of another, e.g.
// time spent on reads by reads completed. Returns 0 when the denominator did
// not move or either counter went backwards.
func Ratio(prevNum, currNum, prevDen, currDen float64) float64 {
	dDen := currDen - prevDen
	dNum := currNum - prevNum
	if dDen <= 0 || dNum < 0 {
		return 0
	}
	return dNum / dDen
}
