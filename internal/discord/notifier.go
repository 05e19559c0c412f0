// Package discord posts operational notifications to a Discord webhook.
// Client teams live in Discord; run summaries land in their channel so nobody
// has to poll the portal.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cratecrew/boxops/internal/domain"
)

// Notifier posts messages to a single Discord webhook URL. A Notifier with
// an empty URL is a no-op, so callers never need nil checks.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier creates a Discord webhook notifier.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Content string `json:"content"`
}

// RunCompleted posts a summary of a finished migration run.
func (n *Notifier) RunCompleted(ctx context.Context, run *domain.MigrationRun) error {
	msg := fmt.Sprintf(
		"Migration run `%s` finished: %d/%d processed, %d clean, %d flagged, %d errors.",
		run.ID, run.ProcessedSubscribers, run.TotalSubscribers,
		run.CleanCount, run.FlaggedCount, run.ErrorCount,
	)
	if run.FlaggedCount > 0 {
		msg += " Flagged records are waiting for review in the portal."
	}
	return n.post(ctx, msg)
}

// BatchFailed posts an alert when a whole batch refused to start.
func (n *Notifier) BatchFailed(ctx context.Context, orgID string, err error) error {
	return n.post(ctx, fmt.Sprintf("Audit batch for org `%s` failed to start: %v", orgID, err))
}

func (n *Notifier) post(ctx context.Context, content string) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(webhookPayload{Content: content})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to discord: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}
