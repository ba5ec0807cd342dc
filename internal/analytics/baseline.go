package analytics

import (
	"fmt"
	"sort"
	"strings"
)

// Facets tracked per user, in canonical order.
var Facets = []string{
	"self_awareness",
	"self_regulation",
	"motivation",
	"empathy",
	"social_skills",
}

// BaselineAnswer is one questionnaire answer: question id and Likert value.
type BaselineAnswer struct {
	QID   string  `json:"qid"`
	Value float64 `json:"value"`
}

// BaselineResult holds per-facet scores in [0,1] plus the derived strength
// (top facet) and focus areas (bottom two).
type BaselineResult struct {
	Scores    map[string]float64 `json:"scores"`
	Strengths []string           `json:"strengths"`
	Focus     []string           `json:"focus"`
}

// ScoreBaseline buckets answers by facet using qmap (question id -> facet),
// normalizes each 1-5 value to [0,1] by /5, and averages per facet. Facets
// with no answers score 0.
func ScoreBaseline(answers []BaselineAnswer, qmap map[string]string) BaselineResult {
	agg := make(map[string][]float64)
	for _, facet := range qmap {
		agg[facet] = nil
	}

	for _, ans := range answers {
		facet, ok := qmap[ans.QID]
		if !ok {
			continue
		}
		agg[facet] = append(agg[facet], ans.Value/5)
	}

	scores := make(map[string]float64, len(agg))
	for facet, vals := range agg {
		if len(vals) == 0 {
			scores[facet] = 0
			continue
		}
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		scores[facet] = sum / float64(len(vals))
	}

	ranked := rankFacets(scores)

	var strengths, focus []string
	if len(ranked) > 0 {
		strengths = []string{ranked[0]}
	}
	if len(ranked) >= 2 {
		focus = []string{ranked[len(ranked)-2], ranked[len(ranked)-1]}
	}

	return BaselineResult{Scores: scores, Strengths: strengths, Focus: focus}
}

// SummarizeBaseline renders facet scores as a short human-readable summary.
func SummarizeBaseline(scores map[string]float64) string {
	if len(scores) == 0 {
		return "No scores available."
	}

	ranked := rankFacets(scores)
	summary := fmt.Sprintf("Your strongest area is %s.", facetTitle(ranked[0]))
	if len(ranked) >= 2 {
		bottom := []string{facetTitle(ranked[len(ranked)-2]), facetTitle(ranked[len(ranked)-1])}
		summary += fmt.Sprintf(" Focus on improving %s.", strings.Join(bottom, ", "))
	}
	return summary
}

// rankFacets sorts facet names by score descending, name ascending on ties so
// the ordering is stable across runs.
func rankFacets(scores map[string]float64) []string {
	names := make([]string, 0, len(scores))
	for f := range scores {
		names = append(names, f)
	}
	sort.Slice(names, func(i, j int) bool {
		if scores[names[i]] != scores[names[j]] {
			return scores[names[i]] > scores[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func facetTitle(facet string) string {
	words := strings.Split(facet, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
