// Package safety classifies free text for imminent self-harm risk.
//
// Two stages run per classification: a deterministic keyword scanner that
// always executes, and an optional model-backed label. The merge is
// asymmetric: the scanner can force ESCALATE but can never be overruled into
// SAFE, so a missing or wrong model cannot suppress a true risk signal.
package safety

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/raailabs/raai/internal/llm"
)

// Label is the binary safety outcome of a classification.
type Label string

const (
	LabelSafe     Label = "SAFE"
	LabelEscalate Label = "ESCALATE"
)

var strongIntent = []*regexp.Regexp{
	regexp.MustCompile(`\bi (?:want|wish|plan|am going|gonna)\s+to\s+(?:die|kill myself|end my life)\b`),
	regexp.MustCompile(`\bi (?:will|might)\s+(?:kill myself|end my life)\b`),
	regexp.MustCompile(`\bi can(?:not|'t)\s+go on\b`),
	regexp.MustCompile(`\bi (?:want|need)\s+to\s+(?:disappear|end it all)\b`),
	regexp.MustCompile(`\bsuicide\b`),
	regexp.MustCompile(`\bself-?harm\b`),
}

var methodMention = regexp.MustCompile(
	`\b(overdose|take pills|poison|jump|hang|cut|cutting|slit|shoot|knife|train|bridge)\b`)

var desireCue = regexp.MustCompile(`\bi (?:want|plan|intend|need)\b`)

var imminenceCues = []*regexp.Regexp{
	regexp.MustCompile(`\bright now\b`),
	regexp.MustCompile(`\btoday\b`),
	regexp.MustCompile(`\btonight\b`),
	regexp.MustCompile(`\bthis (?:morning|evening|afternoon)\b`),
}

var despairCue = regexp.MustCompile(`\b(hopeless|no point|worthless|nothing matters)\b`)

// KeywordRisk runs the deterministic scanner alone. Exposed for callers that
// need the heuristic verdict without a model round-trip.
func KeywordRisk(text string) bool {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return false
	}

	for _, pat := range strongIntent {
		if pat.MatchString(t) {
			return true
		}
	}

	if methodMention.MatchString(t) && desireCue.MatchString(t) {
		return true
	}

	imminent := false
	for _, pat := range imminenceCues {
		if pat.MatchString(t) {
			imminent = true
			break
		}
	}

	suicidal := strings.Contains(t, "suicide") ||
		strings.Contains(t, "end my life") ||
		strings.Contains(t, "kill myself")
	if suicidal && imminent {
		return true
	}

	if despairCue.MatchString(t) && imminent {
		return true
	}

	return false
}

const classifyPrompt = `You are a safety screening system for a wellness journal.
Read the text below and decide whether it indicates imminent self-harm risk.
Respond with ONLY a JSON object: {"label": "SAFE"} or {"label": "ESCALATE"}.
No other text.

Text:
%s`

type labelResponse struct {
	Label string `json:"label"`
}

// Classifier merges the keyword scanner with an optional model label.
type Classifier struct {
	Model llm.Client // nil means keyword-only operation
	Log   *zap.SugaredLogger
}

func NewClassifier(model llm.Client, log *zap.SugaredLogger) *Classifier {
	return &Classifier{Model: model, Log: log}
}

// Classify returns the merged risk label for text.
//
// The keyword scanner runs first. When a model is configured it is asked for
// a strict JSON label; anything outside {SAFE, ESCALATE} coerces to SAFE, and
// any call or parse failure falls back to the scanner verdict alone. The
// scanner flag always wins an ESCALATE.
func (c *Classifier) Classify(ctx context.Context, text string) Label {
	kwFlag := KeywordRisk(text)

	if c.Model == nil {
		return labelFromFlag(kwFlag)
	}

	raw, err := c.Model.Generate(ctx, fmt.Sprintf(classifyPrompt, text))
	if err != nil {
		c.Log.Warnw("safety model call failed; using keyword verdict", "error", err)
		return labelFromFlag(kwFlag)
	}

	parsed, err := llm.ParseJSON[labelResponse](raw)
	if err != nil {
		c.Log.Warnw("safety model output unparseable; using keyword verdict", "error", err)
		return labelFromFlag(kwFlag)
	}

	label := Label(strings.ToUpper(strings.TrimSpace(parsed.Label)))
	if label != LabelSafe && label != LabelEscalate {
		label = LabelSafe
	}
	if kwFlag {
		label = LabelEscalate
	}
	return label
}

func labelFromFlag(flag bool) Label {
	if flag {
		return LabelEscalate
	}
	return LabelSafe
}
