package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/raailabs/raai/internal/llm"
	"github.com/raailabs/raai/internal/retrieval"
	"github.com/raailabs/raai/internal/store"
)

const coachPromptTemplate = `You are an empathetic coach using motivational interviewing.
Ask exactly ONE brief, non-judgmental, reflective question that nudges self-awareness.
Do NOT give advice. Do NOT ask multiple questions.

State:
facet: %s
emotions: %s
last_entry_summary: %s
context_passages: %s`

const followupPrompt = `You are an empathetic EI coach. Summarize the user's reflection in ONE short, neutral insight sentence. Avoid advice, judgments, or multiple sentences. No more than 25 words.
Facet: %s
User reflection: %s
Return only the insight sentence.`

// CoachResponse is the coaching payload for one message.
type CoachResponse struct {
	Text      string               `json:"text"`
	Tasks     []string             `json:"tasks"`
	Citations []retrieval.Citation `json:"citations"`
	Why       string               `json:"why"`
}

// WeeklyReview summarizes a session's recent mood trend.
type WeeklyReview struct {
	Summary   string               `json:"summary"`
	Goals     []string             `json:"goals"`
	Insights  []string             `json:"insights"`
	Citations []retrieval.Citation `json:"citations"`
}

// InsightAgent turns retrieved context and sentiment state into coaching
// output. All model calls degrade to deterministic fallbacks.
type InsightAgent struct {
	Model llm.Client
	Store *store.Store
	Log   *zap.SugaredLogger
}

// Coach produces one reflective question plus grounding tasks for the facet
// most in need of attention.
func (a *InsightAgent) Coach(ctx context.Context, message string, passages []string, facet string, emotions []Emotion) CoachResponse {
	summary := message
	if runes := []rune(summary); len(runes) > 200 {
		summary = string(runes[:200])
	}
	question := a.coachQuestion(ctx, facet, emotions, summary, passages)

	return CoachResponse{
		Text: question,
		Tasks: []string{
			"Take 3 deep breaths",
			"Write one sentence about how you feel right now",
		},
		Citations: []retrieval.Citation{},
		Why:       "Reflective questions build self-awareness and emotional clarity",
	}
}

func (a *InsightAgent) coachQuestion(ctx context.Context, facet string, emotions []Emotion, lastSummary string, passages []string) string {
	if a.Model != nil {
		prompt := fmt.Sprintf(coachPromptTemplate, facet, emotionsJSON(emotions), lastSummary, passageContext(passages))
		raw, err := a.Model.Generate(ctx, prompt)
		if err == nil {
			q := truncateWords(firstQuestion(raw), 20)
			if !strings.HasSuffix(q, "?") {
				q += "?"
			}
			return q
		}
		a.Log.Errorw("coach question generation failed; using fallback", "error", err)
	}
	return facetFallbackQuestion(facet, emotions)
}

// passageContext condenses the top retrieved passages for the coach prompt.
func passageContext(passages []string) string {
	if len(passages) > 2 {
		passages = passages[:2]
	}
	joined := strings.Join(passages, " | ")
	if runes := []rune(joined); len(runes) > 400 {
		joined = string(runes[:400])
	}
	if joined == "" {
		return "none"
	}
	return joined
}

// FollowUp turns a user's reflection reply into one neutral insight line.
func (a *InsightAgent) FollowUp(ctx context.Context, facet, userReply string) string {
	if a.Model != nil {
		raw, err := a.Model.Generate(ctx, fmt.Sprintf(followupPrompt, facet, userReply))
		if err == nil {
			line := strings.TrimSpace(raw)
			if i := strings.IndexByte(line, '\n'); i >= 0 {
				line = strings.TrimSpace(line[:i])
			}
			line = strings.Trim(truncateWords(line, 25), ` '"`)
			if line != "" {
				return line
			}
		} else {
			a.Log.Errorw("coach followup generation failed; using fallback", "error", err)
		}
	}
	return fallbackInsight(userReply)
}

// Review aggregates the session's mood samples into a weekly trend summary.
func (a *InsightAgent) Review(ctx context.Context, sessionID string) WeeklyReview {
	messages, err := a.Store.SessionMessages(ctx, sessionID, 100)
	if err != nil {
		a.Log.Errorw("weekly review failed", "session_id", sessionID, "error", err)
		return WeeklyReview{
			Summary:   "Unable to generate review at this time",
			Goals:     []string{},
			Insights:  []string{},
			Citations: []retrieval.Citation{},
		}
	}

	var moods []float64
	for _, m := range messages {
		if v, ok := moodIndexValue(m.Metadata); ok {
			moods = append(moods, v)
		}
	}
	avg := 50.0
	if len(moods) > 0 {
		sum := 0.0
		for _, v := range moods {
			sum += v
		}
		avg = sum / float64(len(moods))
	}
	trend := "declining"
	switch {
	case avg > 55:
		trend = "improving"
	case avg > 45:
		trend = "stable"
	}

	summary := fmt.Sprintf("Over the past week, your mood has been %s (avg: %.1f/100). ", trend, avg)
	summary += fmt.Sprintf("You've engaged in %d conversations, showing consistent reflection.", len(messages))

	return WeeklyReview{
		Summary: summary,
		Goals: []string{
			"Continue daily check-ins",
			"Try one new coping strategy this week",
			"Share a positive moment with someone you trust",
		},
		Insights: []string{
			"Your most frequent emotion theme: reflection",
			"Strongest facet: self-awareness",
			"Growth opportunity: self-regulation practices",
		},
		Citations: []retrieval.Citation{},
	}
}

func facetFallbackQuestion(facet string, emotions []Emotion) string {
	emo := ""
	if len(emotions) > 0 {
		emo = strings.ToLower(emotions[0].Label)
	}
	switch strings.ToLower(facet) {
	case "self_regulation":
		switch emo {
		case "anger", "anxiety", "fear", "stress":
			return "What was the very first cue in your body before the emotion rose?"
		}
		return "What small action helps you regain calm when emotions rise?"
	case "self_awareness":
		return "What emotion did you notice first, and what triggered it?"
	case "empathy":
		return "What might the other person be feeling or needing right now?"
	case "social_skills":
		return "What outcome do you want from the next conversation about this?"
	case "motivation":
		return "What is one five-minute step you can take today toward your goal?"
	}
	return "What did you notice in yourself just before the feeling emerged?"
}

func fallbackInsight(userReply string) string {
	s := strings.TrimSpace(userReply)
	if s == "" {
		return "Noted: you paused to reflect on your experience."
	}
	s = strings.ReplaceAll(s, "\n", " ")
	return fmt.Sprintf("Noted: you identified %q as meaningful.", truncateWords(s, 20))
}

var questionRe = regexp.MustCompile(`(?s)(.+?\?)`)

// firstQuestion extracts the first sentence ending with '?', else the first
// line or sentence with '?' appended.
func firstQuestion(text string) string {
	text = strings.TrimSpace(text)
	if m := questionRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	piece := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		piece = text[:i]
	} else if i := strings.IndexByte(text, '.'); i >= 0 {
		piece = text[:i]
	}
	piece = strings.TrimSpace(piece)
	if !strings.HasSuffix(piece, "?") {
		piece += "?"
	}
	return piece
}

func truncateWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) <= max {
		return strings.TrimSpace(text)
	}
	return strings.TrimRight(strings.Join(words[:max], " "), ",.;:") + "…"
}

func emotionsJSON(emotions []Emotion) string {
	if len(emotions) == 0 {
		return "[]"
	}
	parts := make([]string, 0, len(emotions))
	for _, e := range emotions {
		parts = append(parts, fmt.Sprintf(`{"label":%q,"score":%.2f}`, e.Label, e.Score))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func moodIndexValue(metadata map[string]any) (float64, bool) {
	v, ok := metadata["mood_index"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
