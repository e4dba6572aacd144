// ABOUTME: HTTP client for posting messages to a Teams incoming webhook
// ABOUTME: Parses the optional conversation id echo from the connector response

package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SendResult is what the webhook reports after accepting a message.
type SendResult struct {
	// ConversationID is the thread id Teams echoed back, when it did.
	// The classic connector responds with a bare "1" and no id.
	ConversationID string
}

// Client posts messages to a Teams incoming webhook.
type Client struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a webhook client. The timeout bounds each Post call;
// zero falls back to 10 seconds.
func NewClient(webhookURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		webhookURL: strings.TrimSpace(webhookURL),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "teams-client"),
	}
}

// outgoingMessage is the incoming-webhook request body.
type outgoingMessage struct {
	Text string `json:"text"`
}

// echoResponse is the response shape when the webhook echoes thread info.
type echoResponse struct {
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
}

// Post sends text to the webhook and returns the conversation id Teams
// echoed, if any. Non-2xx statuses and transport errors are returned as
// errors; the response body is read even when it is not JSON.
func (c *Client) Post(ctx context.Context, text string) (SendResult, error) {
	body, err := json.Marshal(outgoingMessage{Text: text})
	if err != nil {
		return SendResult{}, fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("posting to teams webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return SendResult{}, fmt.Errorf("reading webhook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("teams webhook rejected message",
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 200),
		)
		return SendResult{}, fmt.Errorf("teams webhook returned status %d", resp.StatusCode)
	}

	// The connector usually answers with a bare "1"; newer workflow
	// endpoints echo JSON with the conversation id.
	var echo echoResponse
	if err := json.Unmarshal(respBody, &echo); err == nil && echo.Conversation.ID != "" {
		return SendResult{ConversationID: echo.Conversation.ID}, nil
	}

	return SendResult{}, nil
}

// truncate shortens s to at most n bytes for log output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
