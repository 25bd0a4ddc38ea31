// Package notifier delivers notifications to subscription routes via HTTP
// POST.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kristobalus/sport-triggers-sub000/internal/events"
)

// Dispatcher delivers one notification to a subscription's route.
type Dispatcher interface {
	Dispatch(ctx context.Context, route string, n *events.Notification) error
}

// Webhook posts notifications as JSON documents to HTTP routes.
type Webhook struct {
	httpClient *http.Client
}

// NewWebhook creates a webhook dispatcher with a bounded request timeout.
func NewWebhook() *Webhook {
	return &Webhook{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Dispatch implements Dispatcher. Non-2xx responses are errors carrying the
// status code so transient statuses stay retryable upstream.
func (w *Webhook) Dispatch(ctx context.Context, route string, n *events.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification for trigger %s: %w", n.TriggerID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, route, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", route, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification to %s: %w", route, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("route %s returned status %d", route, resp.StatusCode)
	}

	slog.Debug("Notification delivered",
		"route", route,
		"trigger_id", n.TriggerID,
	)
	return nil
}
