package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultAPIBase     = "https://api.telegram.org"
	defaultHTTPTimeout = 10 * time.Second
	// Bot API limits.
	maxMessageLength   = 4096
	maxCallbackDataLen = 64
)

var tracer = otel.Tracer("pharmacy.internal.channels.telegram")

// Client calls the Telegram Bot API.
type Client struct {
	token      string
	apiBase    string
	httpClient *http.Client
}

// NewClient creates a Bot API client for token.
func NewClient(token string) *Client {
	return &Client{
		token:      token,
		apiBase:    defaultAPIBase,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SetAPIBase overrides the Bot API base URL (useful for testing).
func (c *Client) SetAPIBase(base string) {
	c.apiBase = base
}

// SendMessage posts text to a chat, optionally with an inline keyboard.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) error {
	ctx, span := tracer.Start(ctx, "telegram.send_message")
	defer span.End()
	span.SetAttributes(attribute.Int64("telegram.chat_id", req.ChatID))

	if err := c.call(ctx, "sendMessage", req); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// AnswerCallbackQuery clears the loading state on a pressed button.
func (c *Client) AnswerCallbackQuery(ctx context.Context, id string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: id})
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal %s: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("telegram: read response: %w", err)
	}
	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("telegram: %s: unexpected status %d", method, resp.StatusCode)
	}
	if !parsed.OK {
		return fmt.Errorf("telegram: %s: API error %d: %s", method, parsed.ErrorCode, parsed.Description)
	}
	return nil
}
