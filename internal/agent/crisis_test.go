package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raailabs/raai/internal/alert"
	"github.com/raailabs/raai/internal/logging"
	"github.com/raailabs/raai/internal/safety"
)

type recordingTransport struct {
	sent []alert.Alert
	err  error
}

func (r *recordingTransport) Send(_ context.Context, a alert.Alert) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, a)
	return nil
}

func newCrisisAgent(transport alert.Transport) *CrisisAgent {
	classifier := &safety.Classifier{Log: logging.Nop()}
	return NewCrisisAgent(classifier, transport, NewMemoryCooldown(), 2.5, 24*time.Hour, logging.Nop())
}

func TestEvaluateNoRisk(t *testing.T) {
	transport := &recordingTransport{}
	agent := newCrisisAgent(transport)

	got := agent.Evaluate(context.Background(), "s1", "u1", 0.4, "a calm reflection on the day")

	assert.False(t, got.Triggered)
	assert.Equal(t, ActionNone, got.Action)
	assert.False(t, got.AlertSent)
	assert.Empty(t, transport.sent)
}

func TestEvaluateZScoreMonitors(t *testing.T) {
	agent := newCrisisAgent(&recordingTransport{})

	got := agent.Evaluate(context.Background(), "s1", "u1", -3.1, "feeling pretty flat lately")

	assert.True(t, got.Triggered)
	assert.Equal(t, ActionMonitor, got.Action)
	assert.False(t, got.AlertSent)
}

func TestEvaluateEscalationAlerts(t *testing.T) {
	transport := &recordingTransport{}
	agent := newCrisisAgent(transport)

	got := agent.Evaluate(context.Background(), "s1", "u1", 0.0, "I want to end my life tonight")

	assert.True(t, got.Triggered)
	assert.Equal(t, ActionAlert, got.Action)
	assert.True(t, got.AlertSent)
	require.Len(t, transport.sent, 1)
	assert.Equal(t, "u1", transport.sent[0].UserID)
	assert.Contains(t, transport.sent[0].Message, "u1")
}

func TestEvaluateCooldownSuppressesSecondAlert(t *testing.T) {
	transport := &recordingTransport{}
	agent := newCrisisAgent(transport)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	agent.SetClock(func() time.Time { return now })

	text := "I want to kill myself"

	first := agent.Evaluate(context.Background(), "s1", "u1", 0, text)
	assert.True(t, first.AlertSent)

	now = now.Add(2 * time.Hour)
	second := agent.Evaluate(context.Background(), "s1", "u1", 0, text)
	assert.True(t, second.Triggered)
	assert.Equal(t, ActionAlert, second.Action)
	assert.False(t, second.AlertSent)
	assert.Len(t, transport.sent, 1)

	now = now.Add(23 * time.Hour)
	third := agent.Evaluate(context.Background(), "s1", "u1", 0, text)
	assert.True(t, third.AlertSent)
	assert.Len(t, transport.sent, 2)
}

func TestEvaluateCooldownPerUser(t *testing.T) {
	transport := &recordingTransport{}
	agent := newCrisisAgent(transport)

	text := "I want to kill myself"
	assert.True(t, agent.Evaluate(context.Background(), "s1", "u1", 0, text).AlertSent)
	assert.True(t, agent.Evaluate(context.Background(), "s2", "u2", 0, text).AlertSent)
	assert.Len(t, transport.sent, 2)
}

func TestEvaluateTransportFailureKeepsCooldown(t *testing.T) {
	transport := &recordingTransport{err: errors.New("gateway down")}
	agent := newCrisisAgent(transport)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	agent.SetClock(func() time.Time { return now })

	text := "I want to kill myself"
	first := agent.Evaluate(context.Background(), "s1", "u1", 0, text)
	assert.True(t, first.Triggered)
	assert.False(t, first.AlertSent)

	// The failed dispatch still consumed the cooldown window.
	transport.err = nil
	now = now.Add(time.Hour)
	second := agent.Evaluate(context.Background(), "s1", "u1", 0, text)
	assert.False(t, second.AlertSent)
	assert.Empty(t, transport.sent)
}

func TestMemoryCooldownMarkIfAllowed(t *testing.T) {
	c := NewMemoryCooldown()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, c.MarkIfAllowed("u1", base, 24*time.Hour))
	assert.False(t, c.MarkIfAllowed("u1", base.Add(12*time.Hour), 24*time.Hour))
	assert.True(t, c.MarkIfAllowed("u1", base.Add(25*time.Hour), 24*time.Hour))
	assert.True(t, c.MarkIfAllowed("u2", base, 24*time.Hour))
}

func TestAlertBodyTruncatesOnRuneBoundary(t *testing.T) {
	body := alertBody("u1", strings.Repeat("né", 120))

	assert.True(t, utf8.ValidString(body))
	assert.Equal(t, 50, strings.Count(body, "né"))
}
