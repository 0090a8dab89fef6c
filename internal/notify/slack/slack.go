// Package slack posts urgent feedback to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/triage"
)

const (
	maxContentLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier implements triage.Notifier against a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a
// no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Notify posts a feedback item to the configured Slack webhook.
func (n *Notifier) Notify(ctx context.Context, item *triage.FeedbackItem) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(item))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack notification sent", "feedback_id", item.ID, "score", item.Score)
	return nil
}

func buildMessage(it *triage.FeedbackItem) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(it),
			{"type": "divider"},
			fieldsBlock(it),
			{"type": "divider"},
			contentBlock(it),
			{"type": "divider"},
			contextBlock(it),
		},
	}
}

func headerBlock(it *triage.FeedbackItem) map[string]any {
	text := fmt.Sprintf("%s Urgent feedback: %s", categoryEmoji(it.Category), it.Category)
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(it *triage.FeedbackItem) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Priority:* %d/%d", it.Score, triage.MaxScore),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Category:* %s", it.Category),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Source:* %s", it.Origin),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Status:* %s", it.Status),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func contentBlock(it *triage.FeedbackItem) map[string]any {
	text := truncate(it.Content, maxContentLen)
	if text == "" {
		text = "_No content._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Feedback*\n\n%s\n\n_%s_", text, it.Reason),
		},
	}
}

func contextBlock(it *triage.FeedbackItem) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("sift • feedback %s • %s", it.ID, it.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func categoryEmoji(c triage.Category) string {
	switch c {
	case triage.CategorySystemFailure:
		return "\U0001f534" // red circle
	case triage.CategoryBug:
		return "\U0001f7e0" // orange circle
	case triage.CategoryUI:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
