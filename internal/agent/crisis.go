package agent

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raailabs/raai/internal/alert"
	"github.com/raailabs/raai/internal/safety"
)

// Crisis actions, in increasing severity.
const (
	ActionNone    = "none"
	ActionMonitor = "monitor"
	ActionAlert   = "alert"
)

// CrisisDecision reports one evaluation. triggered records that risk was
// detected; alert_sent records that an external alert actually went out,
// which the cooldown gate can suppress independently.
type CrisisDecision struct {
	Triggered bool   `json:"triggered"`
	Action    string `json:"action"`
	AlertSent bool   `json:"alert_sent"`
	Label     string `json:"label,omitempty"`
}

// CooldownStore serializes per-user alert rate limiting. MarkIfAllowed
// reports whether an alert may be dispatched now and, when it may, records
// now as the user's last alert time in the same step.
type CooldownStore interface {
	MarkIfAllowed(userID string, now time.Time, cooldown time.Duration) bool
}

// MemoryCooldown is the in-process CooldownStore. The check and the
// timestamp write happen under one lock so concurrent evaluations for the
// same user cannot both dispatch.
type MemoryCooldown struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{last: make(map[string]time.Time)}
}

func (c *MemoryCooldown) MarkIfAllowed(userID string, now time.Time, cooldown time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.last[userID]; ok && now.Sub(last) <= cooldown {
		return false
	}
	c.last[userID] = now
	return true
}

// CrisisAgent combines the mood z-score and the risk label into an alert
// decision, gated by the per-user cooldown.
type CrisisAgent struct {
	Classifier *safety.Classifier
	Transport  alert.Transport
	Cooldown   CooldownStore

	ZThreshold     float64
	CooldownWindow time.Duration

	Log *zap.SugaredLogger
	now func() time.Time
}

func NewCrisisAgent(classifier *safety.Classifier, transport alert.Transport, cooldown CooldownStore, zThreshold float64, window time.Duration, log *zap.SugaredLogger) *CrisisAgent {
	if zThreshold <= 0 {
		zThreshold = 2.5
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &CrisisAgent{
		Classifier:     classifier,
		Transport:      transport,
		Cooldown:       cooldown,
		ZThreshold:     zThreshold,
		CooldownWindow: window,
		Log:            log,
		now:            time.Now,
	}
}

// SetClock overrides the agent's time source, used by tests.
func (a *CrisisAgent) SetClock(now func() time.Time) { a.now = now }

// Evaluate runs one crisis check. The alert dispatch is best effort: a
// transport failure is logged, not returned, and does not undo the cooldown
// timestamp.
func (a *CrisisAgent) Evaluate(ctx context.Context, sessionID, userID string, zscore float64, text string) CrisisDecision {
	decision := CrisisDecision{Action: ActionNone}

	if math.Abs(zscore) > a.ZThreshold {
		decision.Triggered = true
		decision.Action = ActionMonitor
	}

	if text != "" {
		label := a.Classifier.Classify(ctx, text)
		decision.Label = string(label)
		if label == safety.LabelEscalate {
			decision.Triggered = true
			decision.Action = ActionAlert
		}
	}

	if decision.Action != ActionAlert {
		return decision
	}

	if !a.Cooldown.MarkIfAllowed(userID, a.now(), a.CooldownWindow) {
		a.Log.Infow("crisis alert suppressed by cooldown", "user_id", userID)
		return decision
	}

	decision.AlertSent = true
	err := a.Transport.Send(ctx, alert.Alert{
		UserID:  userID,
		Message: alertBody(userID, text),
		ZScore:  zscore,
	})
	if err != nil {
		a.Log.Errorw("alert dispatch failed", "user_id", userID, "error", err)
		decision.AlertSent = false
		return decision
	}
	a.Log.Infow("crisis alert sent", "user_id", userID, "session_id", sessionID)
	return decision
}

func alertBody(userID, text string) string {
	preview := text
	if runes := []rune(preview); len(runes) > 100 {
		preview = string(runes[:100])
	}
	return "RaAI Alert: User " + userID + " may need support. Context: " + preview
}
