// Package analytics converts raw mood samples into a bounded 0-100 index and
// computes smoothed trend statistics over per-user time series. Everything
// here is a pure function; insufficient data saturates to the documented
// defaults instead of erroring.
package analytics

import "math"

// Trend flags produced by FlagFromTrend.
const (
	FlagSafe  = "SAFE"
	FlagWatch = "WATCH"
)

// CheckinResponses holds one daily Likert check-in, each value in [1,5].
type CheckinResponses struct {
	Mood       float64 `json:"mood"`
	Stress     float64 `json:"stress"`
	Energy     float64 `json:"energy"`
	Connection float64 `json:"connection"`
	Motivation float64 `json:"motivation"`
}

// SeriesStats bundles the trend statistics for one mood index series.
type SeriesStats struct {
	EMA7   float64 `json:"ema7"`
	EMA14  float64 `json:"ema14"`
	ZScore float64 `json:"zscore"`
	Flag   string  `json:"flag"`
}

// ScoreCheckin converts Likert responses to a mood index in [0,100].
// Weights: valence 30%, inverted stress 25%, energy/connection/motivation 15%
// each. Every answer is rescaled from [1,5] to [0,1] first; stress is
// reversed so that lower stress scores higher.
func ScoreCheckin(r CheckinResponses) float64 {
	valence := (r.Mood - 1) / 4
	stressRev := (5 - r.Stress) / 4
	energy := (r.Energy - 1) / 4
	connection := (r.Connection - 1) / 4
	motivation := (r.Motivation - 1) / 4

	index := 100 * (0.30*valence +
		0.25*stressRev +
		0.15*energy +
		0.15*connection +
		0.15*motivation)

	return math.Max(0, math.Min(100, index))
}

// EMA computes the exponential moving average over k periods with
// alpha = 2/(k+1), seeded with the first element. Empty input yields 0.
func EMA(series []float64, k int) float64 {
	if len(series) == 0 {
		return 0
	}
	if len(series) == 1 {
		return series[0]
	}

	alpha := 2.0 / float64(k+1)
	ema := series[0]
	for _, v := range series[1:] {
		ema = alpha*v + (1-alpha)*ema
	}
	return ema
}

// ZScore returns how many population standard deviations the last point lies
// from the series mean. Fewer than 2 points or zero variance yield 0; that is
// a saturating default, not an error.
func ZScore(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}

	mean := 0.0
	for _, v := range series {
		mean += v
	}
	mean /= float64(len(series))

	variance := 0.0
	for _, v := range series {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(series))

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return (series[len(series)-1] - mean) / std
}

// FlagFromTrend is WATCH iff at least 3 points exist and the z-score is at or
// below -1.5. A single dip is noise; the threshold only fires once enough
// history exists for a meaningful mean and variance.
func FlagFromTrend(series []float64) string {
	if len(series) < 3 {
		return FlagSafe
	}
	if ZScore(series) <= -1.5 {
		return FlagWatch
	}
	return FlagSafe
}

// ComputeSeriesStats produces all trend statistics for a mood index series.
func ComputeSeriesStats(series []float64) SeriesStats {
	if len(series) == 0 {
		return SeriesStats{Flag: FlagSafe}
	}
	return SeriesStats{
		EMA7:   EMA(series, 7),
		EMA14:  EMA(series, 14),
		ZScore: ZScore(series),
		Flag:   FlagFromTrend(series),
	}
}
