package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raailabs/raai/internal/analytics"
	"github.com/raailabs/raai/internal/retrieval"
	"github.com/raailabs/raai/internal/safety"
	"github.com/raailabs/raai/internal/store"
)

// Interaction modes accepted by ProcessMessage.
const (
	ModeQA         = "qa"
	ModeReflection = "reflection"
	ModeWeekly     = "weekly"
)

// Reply is the full response for one inbound message.
type Reply struct {
	Text       string               `json:"text"`
	Tasks      []string             `json:"tasks"`
	Citations  []retrieval.Citation `json:"citations"`
	Why        string               `json:"why"`
	Sentiment  SentimentResult      `json:"sentiment"`
	Crisis     CrisisDecision       `json:"crisis_check"`
	Confidence float64              `json:"confidence"`
	Review     *WeeklyReview        `json:"review,omitempty"`
}

// Orchestrator sequences the agents for each inbound message: sentiment,
// then crisis, then retrieval, then insight. It never returns an error to
// the caller; total failure degrades to a generic supportive reply.
type Orchestrator struct {
	Sentiment *SentimentAgent
	Crisis    *CrisisAgent
	Retrieval *retrieval.Engine
	Insight   *InsightAgent
	Store     *store.Store
	Log       *zap.SugaredLogger
}

func (o *Orchestrator) ProcessMessage(ctx context.Context, message, sessionID, userID, mode string) Reply {
	reply, err := o.process(ctx, message, sessionID, userID, mode)
	if err != nil {
		o.Log.Errorw("orchestration failed", "session_id", sessionID, "error", err)
		return Reply{
			Text:      "I'm here to support you. Can you tell me more?",
			Tasks:     []string{},
			Citations: []retrieval.Citation{},
			Why:       "Fallback response",
			Crisis:    CrisisDecision{Triggered: false, Action: ActionNone},
		}
	}
	return reply
}

func (o *Orchestrator) process(ctx context.Context, message, sessionID, userID, mode string) (reply Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("orchestration panic: %v", r)
		}
	}()

	sentiment := o.Sentiment.Analyze(ctx, message, sessionID, userID)
	crisis := o.Crisis.Evaluate(ctx, sessionID, userID, sentiment.ZScore, message)
	retrieved := o.Retrieval.Retrieve(ctx, retrievalQuery(message, sentiment.Scores), 0, true, true)

	reply = Reply{
		Sentiment:  sentiment,
		Crisis:     crisis,
		Confidence: retrieved.Confidence,
	}

	if mode == ModeWeekly {
		review := o.Insight.Review(ctx, sessionID)
		reply.Text = review.Summary
		reply.Tasks = review.Goals
		reply.Citations = review.Citations
		reply.Why = "Weekly mood trend across this session"
		reply.Review = &review
	} else {
		facet := selectFacet(sentiment.Scores)
		coach := o.Insight.Coach(ctx, message, passageTexts(retrieved.Passages), facet, nil)
		reply.Text = coach.Text
		reply.Tasks = coach.Tasks
		reply.Citations = retrieved.Citations
		reply.Why = coach.Why
	}

	if crisis.Label == string(safety.LabelEscalate) {
		reply.Text = safety.EscalationMessage("en")
	}

	o.persist(ctx, message, sessionID, userID, reply)
	return reply, nil
}

// persist appends the user turn and the assistant turn with derived
// metadata. Best effort; a storage failure does not lose the reply.
func (o *Orchestrator) persist(ctx context.Context, message, sessionID, userID string, reply Reply) {
	if o.Store == nil {
		return
	}
	now := time.Now().UTC()
	userTurn := store.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Role:      "user",
		Content:   message,
		Metadata: map[string]any{
			"mood_index": reply.Sentiment.MoodIndex,
			"zscore":     reply.Sentiment.ZScore,
			"label":      reply.Crisis.Label,
			"confidence": reply.Confidence,
		},
		Timestamp: now,
	}
	if err := o.Store.AppendMessage(ctx, userTurn); err != nil {
		o.Log.Errorw("failed to persist user message", "session_id", sessionID, "error", err)
	}

	assistantTurn := store.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Role:      "assistant",
		Content:   reply.Text,
		Metadata: map[string]any{
			"crisis_triggered": reply.Crisis.Triggered,
			"alert_sent":       reply.Crisis.AlertSent,
		},
		// Strictly after the user turn so session ordering is stable.
		Timestamp: now.Add(time.Millisecond),
	}
	if err := o.Store.AppendMessage(ctx, assistantTurn); err != nil {
		o.Log.Errorw("failed to persist assistant message", "session_id", sessionID, "error", err)
	}
}

// retrievalQuery prefers the raw message. When it is blank, as in weekly
// reviews, the query is built from the facets flagged as growth areas so
// the engine still ranks on meaningful terms.
func retrievalQuery(message string, signals map[string]string) string {
	if q := strings.TrimSpace(message); q != "" {
		return q
	}
	var terms []string
	for _, facet := range analytics.Facets {
		if signals[facet] == "-" {
			terms = append(terms, strings.ReplaceAll(facet, "_", " "))
		}
	}
	if len(terms) == 0 {
		terms = []string{strings.ReplaceAll(selectFacet(signals), "_", " ")}
	}
	return strings.Join(terms, " ")
}

// selectFacet picks the first facet marked as a growth area, defaulting to
// self_awareness. Iteration follows the canonical facet order so the choice
// is deterministic.
func selectFacet(signals map[string]string) string {
	for _, facet := range analytics.Facets {
		if signals[facet] == "-" {
			return facet
		}
	}
	return "self_awareness"
}

func passageTexts(chunks []retrieval.Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Text)
	}
	return out
}
