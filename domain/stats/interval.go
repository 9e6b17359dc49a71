// Package stats holds the statistical post-processing of detection counts.
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultChartZ is the two-sided 95% normal critical value used for charts.
const DefaultChartZ = 1.96

// Interval is a confidence interval for a proportion
type Interval struct {
	Lower float64 `json:"lower" db:"lower_bound"`
	Upper float64 `json:"upper" db:"upper_bound"`
}

// Width returns Upper - Lower
func (iv Interval) Width() float64 {
	return iv.Upper - iv.Lower
}

// Contains reports whether p lies inside the closed interval
func (iv Interval) Contains(p float64) bool {
	return p >= iv.Lower && p <= iv.Upper
}

func (iv Interval) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", iv.Lower, iv.Upper)
}

// WilsonScoreInterval computes the Wilson score interval for successes out of
// trials at critical value z. Zero trials yields (0, 0). successes is clamped
// to [0, trials] so the bounds always stay inside [0, 1].
func WilsonScoreInterval(successes, trials, z float64) (lower, upper float64) {
	n := trials
	if n <= 0 {
		return 0, 0
	}
	successes = math.Max(0, math.Min(successes, n))

	phat := successes / n
	z2 := z * z
	center := phat + z2/(2*n)
	margin := z * math.Sqrt((phat*(1-phat)+z2/(4*n))/n)
	denom := 1 + z2/n

	lower = clamp01((center - margin) / denom)
	upper = clamp01((center + margin) / denom)

	// The bounds touch 0 and 1 exactly at the extremes; pin them so rounding
	// never excludes phat.
	if successes <= 0 {
		lower = 0
	}
	if successes >= n {
		upper = 1
	}
	return lower, upper
}

// Wilson is WilsonScoreInterval returning an Interval
func Wilson(successes, trials int, z float64) Interval {
	lo, hi := WilsonScoreInterval(float64(successes), float64(trials), z)
	return Interval{Lower: lo, Upper: hi}
}

// ZScoreForConfidence returns the two-sided normal critical value for a
// confidence level in (0, 1), e.g. 0.95 -> 1.95996.
func ZScoreForConfidence(level float64) (float64, error) {
	if level <= 0 || level >= 1 {
		return 0, fmt.Errorf("confidence level must be in (0, 1), got %g", level)
	}
	alpha := 1.0 - level
	return distuv.UnitNormal.Quantile(1.0 - alpha/2.0), nil
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
