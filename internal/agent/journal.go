package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/raailabs/raai/internal/analytics"
	"github.com/raailabs/raai/internal/llm"
)

// Cognitive distortion rules, matched case-insensitively over the whole entry.
var distortionRules = []struct {
	label string
	re    *regexp.Regexp
}{
	{"all_or_nothing", regexp.MustCompile(`\b(always|never|everyone|no one|nobody|everybody)\b`)},
	{"must_statements", regexp.MustCompile(`\b(should|must|have to|ought to)\b`)},
	{"mind_reading", regexp.MustCompile(`\b(they|he|she|boss|team)\s+(must|probably|likely)\s+think`)},
	{"catastrophizing", regexp.MustCompile(`\b(disaster|ruined|catastrophe|catastrophic|terrible|awful)\b`)},
	{"personalization", regexp.MustCompile(`\b(my fault|all my fault|blame me|because of me)\b`)},
	{"labeling", regexp.MustCompile(`\b(i am|i'm)\s+(a\s+)?(failure|loser|stupid|worthless)\b`)},
	{"emotional_reasoning", regexp.MustCompile(`\b(i feel (like|that) .* therefore|because i feel)\b`)},
	{"mental_filter", regexp.MustCompile(`\b(nothing went well|only bad|everything went wrong)\b`)},
}

// DistortionRules scans an entry for common cognitive distortion patterns and
// returns a sorted, de-duplicated label list.
func DistortionRules(text string) []string {
	if text == "" {
		return nil
	}
	t := strings.ToLower(text)
	var labels []string
	for _, rule := range distortionRules {
		if rule.re.MatchString(t) {
			labels = append(labels, rule.label)
		}
	}
	sort.Strings(labels)
	return labels
}

// Emotion is one labelled emotion with a confidence in [0,1].
type Emotion struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// JournalAnalysis is the normalized result of analyzing one entry.
type JournalAnalysis struct {
	Emotions    []Emotion         `json:"emotions"`
	Sentiment   float64           `json:"sentiment"`
	Distortions []string          `json:"cognitive_distortions"`
	Topics      []string          `json:"topics"`
	FacetSignal map[string]string `json:"facet_signals"`
	Insight     string            `json:"one_line_insight"`
	MoodIndex   float64           `json:"mood_index"`
}

type journalExtraction struct {
	Emotions    []Emotion         `json:"emotions"`
	Sentiment   float64           `json:"sentiment"`
	Distortions []string          `json:"cognitive_distortions"`
	Topics      []string          `json:"topics"`
	FacetSignal map[string]string `json:"facet_signals"`
	Insight     string            `json:"one_line_insight"`
}

const journalPrompt = `You are an EQ analyst. Return STRICT JSON only (no prose, no markdown).
JSON must contain these keys exactly:
- emotions: list of objects { "label": string, "score": float }
- sentiment: float in [-1,1]
- cognitive_distortions: list[string]
- topics: list[string]
- facet_signals: object with keys { "self_awareness","self_regulation","motivation","empathy","social_skills" } and values "+", "-", or "0"
- one_line_insight: string

User entry:
Text: %s
Mood(1-5): %d
Optional context (JSON): %s`

// JournalAnalyzer extracts emotional signals from free text, merging an
// optional model extraction with the deterministic distortion rules.
type JournalAnalyzer struct {
	Model llm.Client
	Log   *zap.SugaredLogger
}

// Analyze never fails: model absence or a bad completion degrades to the
// rule-based signals and neutral defaults.
func (a *JournalAnalyzer) Analyze(ctx context.Context, text string, mood int, extra map[string]any) JournalAnalysis {
	parsed := a.extract(ctx, text, mood, extra)

	merged := mergeDistortions(parsed.Distortions, DistortionRules(text))

	analysis := JournalAnalysis{
		Emotions:    normalizeEmotions(parsed.Emotions, 3),
		Sentiment:   clamp(parsed.Sentiment, -1, 1),
		Distortions: merged,
		Topics:      normalizeTopics(parsed.Topics),
		FacetSignal: ensureAllFacets(parsed.FacetSignal),
		Insight:     strings.TrimSpace(parsed.Insight),
	}

	if analysis.Insight == "" {
		if analysis.Sentiment <= -0.3 {
			analysis.Insight = "Likely trigger detected; watch for early cues and quick escalation."
		} else {
			analysis.Insight = "Notice what helped today and repeat it."
		}
	}

	// An effectively empty entry is neutral regardless of what the model said.
	if strings.TrimSpace(text) == "" {
		analysis.Emotions = []Emotion{{Label: "neutral", Score: 0}}
		analysis.Sentiment = 0
		analysis.Topics = nil
		analysis.FacetSignal = ensureAllFacets(nil)
		analysis.Insight = "Try noting one emotion and one trigger next time."
	}

	analysis.MoodIndex = MoodIndexFromSentiment(analysis.Sentiment)
	return analysis
}

func (a *JournalAnalyzer) extract(ctx context.Context, text string, mood int, extra map[string]any) journalExtraction {
	neutral := journalExtraction{
		Emotions:    []Emotion{{Label: "unsure", Score: 0}},
		Insight:     "Could not analyze entry reliably.",
		FacetSignal: ensureAllFacets(nil),
	}
	if a.Model == nil {
		return neutral
	}

	ctxJSON := []byte("{}")
	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			ctxJSON = b
		}
	}
	response, err := a.Model.Generate(ctx, fmt.Sprintf(journalPrompt, text, mood, ctxJSON))
	if err != nil {
		a.Log.Errorw("journal extraction failed; returning defaults", "error", err)
		return neutral
	}
	parsed, err := llm.ParseJSON[journalExtraction](response)
	if err != nil {
		a.Log.Errorw("journal extraction returned unusable JSON", "error", err)
		return neutral
	}
	return parsed
}

// MoodIndexFromSentiment maps sentiment in [-1,1] onto the 0-100 mood scale.
func MoodIndexFromSentiment(sentiment float64) float64 {
	return clamp(50*(1+sentiment), 0, 100)
}

func mergeDistortions(a, b []string) []string {
	seen := make(map[string]bool)
	var merged []string
	for _, d := range append(a, b...) {
		d = strings.TrimSpace(strings.ToLower(d))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		merged = append(merged, d)
	}
	sort.Strings(merged)
	return merged
}

func normalizeEmotions(items []Emotion, topK int) []Emotion {
	norm := make([]Emotion, 0, len(items))
	for _, e := range items {
		norm = append(norm, Emotion{
			Label: strings.ToLower(strings.TrimSpace(e.Label)),
			Score: clamp(e.Score, 0, 1),
		})
	}
	sort.SliceStable(norm, func(i, j int) bool { return norm[i].Score > norm[j].Score })
	if len(norm) > topK {
		norm = norm[:topK]
	}
	return norm
}

func normalizeTopics(topics []string) []string {
	var out []string
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func ensureAllFacets(signals map[string]string) map[string]string {
	out := make(map[string]string, len(analytics.Facets))
	for _, f := range analytics.Facets {
		out[f] = "0"
	}
	for k, v := range signals {
		if _, ok := out[k]; ok && (v == "+" || v == "-" || v == "0") {
			out[k] = v
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
