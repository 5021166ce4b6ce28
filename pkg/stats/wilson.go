package stats

import "math"

// WilsonLowerBound returns the lower bound of the Wilson score interval for
// the success rate successes/n. It assumes an infinite population, so it is
// only an approximation of MinSuccessFraction for small N.
func WilsonLowerBound(successes, n int, z float64) float64 {
	if n <= 0 || successes < 0 || successes > n {
		return 0.0
	}
	fn := float64(n)
	p := float64(successes) / fn
	den := 1.0 + (z*z)/fn
	center := p + (z*z)/(2.0*fn)
	rad := z * math.Sqrt((p*(1.0-p)+(z*z)/(4.0*fn))/fn)
	return math.Max(0, (center-rad)/den)
}
