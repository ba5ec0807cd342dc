package agent

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/raailabs/raai/internal/analytics"
	"github.com/raailabs/raai/internal/store"
)

// Bounded history window for the z-score baseline.
const (
	moodWindowDays  = 30
	moodWindowLimit = 100
)

// spikeThreshold marks a mood reading alert-worthy, stricter than the
// trend WATCH flag.
const spikeThreshold = 2.5

// MoodEvent is an anomaly detected against the user's recent history.
type MoodEvent struct {
	Type      string  `json:"type"`
	Direction string  `json:"direction"`
	Magnitude float64 `json:"magnitude"`
}

// SentimentResult carries the per-message emotional signals downstream.
type SentimentResult struct {
	Sentiment   string            `json:"sentiment"`
	Scores      map[string]string `json:"scores"`
	ZScore      float64           `json:"zscore"`
	Events      []MoodEvent       `json:"events"`
	MoodIndex   float64           `json:"mood_index"`
	Distortions []string          `json:"cognitive_distortions,omitempty"`
	Insight     string            `json:"one_line_insight,omitempty"`
}

// SentimentAgent scores a message's mood and compares it against the user's
// recent series. It never fails: missing history or a storage error produces
// neutral defaults.
type SentimentAgent struct {
	Analyzer *JournalAnalyzer
	Store    *store.Store
	Log      *zap.SugaredLogger
}

func (s *SentimentAgent) Analyze(ctx context.Context, text, sessionID, userID string) SentimentResult {
	analysis := s.Analyzer.Analyze(ctx, text, 3, nil)

	result := SentimentResult{
		Sentiment:   sentimentLabel(analysis.Sentiment),
		Scores:      analysis.FacetSignal,
		MoodIndex:   analysis.MoodIndex,
		Distortions: analysis.Distortions,
		Insight:     analysis.Insight,
		Events:      []MoodEvent{},
	}

	samples, err := s.Store.MoodSeries(ctx, userID, moodWindowDays, moodWindowLimit)
	if err != nil {
		s.Log.Errorw("mood history unavailable; using neutral z-score", "user_id", userID, "error", err)
		return result
	}
	if len(samples) < 3 {
		return result
	}

	series := make([]float64, 0, len(samples)+1)
	for _, m := range samples {
		series = append(series, m.Index)
	}
	series = append(series, analysis.MoodIndex)
	result.ZScore = analytics.ZScore(series)

	if math.Abs(result.ZScore) > spikeThreshold {
		direction := "low"
		if result.ZScore > 0 {
			direction = "high"
		}
		result.Events = append(result.Events, MoodEvent{
			Type:      "mood_spike",
			Direction: direction,
			Magnitude: math.Abs(result.ZScore),
		})
		s.Log.Infow("mood spike detected", "user_id", userID, "zscore", result.ZScore)
	}
	return result
}

func sentimentLabel(v float64) string {
	switch {
	case v <= -0.3:
		return "negative"
	case v >= 0.3:
		return "positive"
	default:
		return "neutral"
	}
}
