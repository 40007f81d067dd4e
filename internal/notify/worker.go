// Package notify posts decision and settlement events to a chat
// webhook. Delivery is best-effort: failures are logged and dropped,
// never retried, and never affect the decision path.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/parametric-rail/railpledge/internal/domain"
)

// Worker consumes decision events from the bus and forwards a short
// text summary to the configured webhook.
type Worker struct {
	bus        domain.EventBus
	webhookURL string
	httpClient *http.Client

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a notification worker.
func NewWorker(bus domain.EventBus, cfg domain.NotifierConfig) *Worker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        bus,
		webhookURL: cfg.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the decision and settlement topics.
func (w *Worker) Start() error {
	for _, topic := range []string{domain.TopicDecision, domain.TopicSettlement} {
		sub, err := w.bus.Subscribe(w.ctx, topic, w.handleMessage)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("notification worker started",
		"webhook_configured", w.webhookURL != "",
	)
	return nil
}

// Stop unsubscribes and cancels in-flight deliveries.
func (w *Worker) Stop() {
	for _, sub := range w.subscriptions {
		_ = sub.Unsubscribe()
	}
	w.subscriptions = nil
	w.cancel()
	slog.Info("notification worker stopped")
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var d domain.Decision
	if err := json.Unmarshal(msg.Payload, &d); err != nil {
		slog.Error("failed to decode decision event",
			"topic", msg.Topic,
			"message_id", msg.ID,
			"error", err,
		)
		return nil
	}

	if err := w.post(ctx, formatDecision(&d)); err != nil {
		slog.Warn("notification delivery failed",
			"decision_id", d.ID,
			"error", err,
		)
	}
	return nil
}

func (w *Worker) post(ctx context.Context, text string) error {
	if w.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// formatDecision renders a one-line summary for the chat channel.
func formatDecision(d *domain.Decision) string {
	switch d.Kind {
	case domain.KindSettlement:
		return fmt.Sprintf("settlement %s: status=%d delay=%dmin", d.ID, d.Status, d.DelayMinutes)
	default:
		if d.Status == domain.StatusOK {
			if len(d.Payouts) > 0 {
				return fmt.Sprintf("payout %s: accepted, probability=%.2f%%, all tiers", d.ID, d.Probability)
			}
			return fmt.Sprintf("payout %s: accepted, probability=%.2f%%, tier=%s, payout=%.2f",
				d.ID, d.Probability, d.Tier, d.Payout)
		}
		return fmt.Sprintf("payout %s: rejected, status=%d", d.ID, d.Status)
	}
}
