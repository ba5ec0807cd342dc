package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Alert is one outbound crisis notification.
type Alert struct {
	UserID  string  `json:"user_id"`
	Channel string  `json:"channel"`
	Message string  `json:"message"`
	ZScore  float64 `json:"z_score,omitempty"`
}

// Transport delivers an alert over one channel. Delivery is best effort;
// callers treat a failed send as notification lost, not as a pipeline error.
type Transport interface {
	Send(ctx context.Context, a Alert) error
}

// WebhookTransport POSTs alerts as JSON to a configured endpoint, the
// shape an SMS or push gateway relay expects.
type WebhookTransport struct {
	URL     string
	Channel string
	Client  *http.Client
	Log     *zap.SugaredLogger
}

func NewWebhookTransport(url, channel string, log *zap.SugaredLogger) *WebhookTransport {
	return &WebhookTransport{
		URL:     url,
		Channel: channel,
		Client:  &http.Client{Timeout: 5 * time.Second},
		Log:     log,
	}
}

func (t *WebhookTransport) Send(ctx context.Context, a Alert) error {
	a.Channel = t.Channel
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s alert: %w", t.Channel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s alert webhook returned status %d", t.Channel, resp.StatusCode)
	}
	t.Log.Infow("alert delivered", "channel", t.Channel, "user_id", a.UserID)
	return nil
}

// LogTransport records alerts to the log only, used when no webhook is
// configured.
type LogTransport struct {
	Log *zap.SugaredLogger
}

func (t *LogTransport) Send(_ context.Context, a Alert) error {
	t.Log.Warnw("crisis alert (no delivery channel configured)",
		"user_id", a.UserID, "message", a.Message)
	return nil
}

// Fanout sends an alert through every transport and reports success if at
// least one delivery went through.
type Fanout struct {
	Transports []Transport
}

func (f *Fanout) Send(ctx context.Context, a Alert) error {
	if len(f.Transports) == 0 {
		return fmt.Errorf("no alert transports configured")
	}
	var lastErr error
	delivered := false
	for _, t := range f.Transports {
		if err := t.Send(ctx, a); err != nil {
			lastErr = err
			continue
		}
		delivered = true
	}
	if !delivered {
		return lastErr
	}
	return nil
}
