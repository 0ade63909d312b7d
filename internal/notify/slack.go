// ABOUTME: Slack notification sink: posts a completion summary to a webhook URL
// ABOUTME: Adapted from the workflow engine's Slack task executor, narrowed to a fixed summary payload

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type slackPayload struct {
	Text string `json:"text"`
}

// SlackSink posts a completion summary to a Slack incoming webhook.
type SlackSink struct {
	WebhookURL string
	Client     *http.Client
}

// NewSlackSink creates a SlackSink targeting webhookURL.
func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{WebhookURL: webhookURL, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (s *SlackSink) Notify(ctx context.Context, summary Summary) error {
	text := fmt.Sprintf("workflow exit_code=%d duration=%s correlation_id=%s", summary.ExitCode, summary.Duration, summary.CorrelationID)
	if summary.FailedTask != 0 {
		text += fmt.Sprintf(" failed_task=%d", summary.FailedTask)
	}

	body, err := json.Marshal(slackPayload{Text: text})
	if err != nil {
		return fmt.Errorf("marshaling slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %s", resp.Status)
	}
	return nil
}
