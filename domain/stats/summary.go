package stats

import (
	"math"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// RateSummary describes detection rates of one cell across repetitions
type RateSummary struct {
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	StdDev float64  `json:"std_dev"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	Median float64  `json:"median"`
	MeanCI Interval `json:"mean_ci"`
}

// SummarizeRates aggregates per-repetition rates. A single repetition has a
// zero-width mean interval.
func SummarizeRates(rates []float64, confidenceLevel float64) (RateSummary, error) {
	data := mstats.Float64Data(rates)

	mean, err := mstats.Mean(data)
	if err != nil {
		return RateSummary{}, err
	}
	min, err := mstats.Min(data)
	if err != nil {
		return RateSummary{}, err
	}
	max, err := mstats.Max(data)
	if err != nil {
		return RateSummary{}, err
	}
	median, err := mstats.Median(data)
	if err != nil {
		return RateSummary{}, err
	}

	summary := RateSummary{
		Count:  len(rates),
		Mean:   mean,
		Min:    min,
		Max:    max,
		Median: median,
		MeanCI: Interval{Lower: mean, Upper: mean},
	}

	if len(rates) < 2 {
		return summary, nil
	}

	stdDev, err := mstats.StandardDeviationSample(data)
	if err != nil {
		return RateSummary{}, err
	}
	summary.StdDev = stdDev

	df := float64(len(rates) - 1)
	alpha := 1.0 - confidenceLevel
	tCritical := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(1.0 - alpha/2.0)
	margin := tCritical * stdDev / math.Sqrt(float64(len(rates)))
	summary.MeanCI = Interval{Lower: clamp01(mean - margin), Upper: clamp01(mean + margin)}

	return summary, nil
}
