// Package line is a minimal client for the LINE Messaging API covering the
// two calls the relay needs: downloading message content and sending replies.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultAPIBaseURL serves the reply endpoint.
	DefaultAPIBaseURL = "https://api.line.me"
	// DefaultDataAPIBaseURL serves message content downloads.
	DefaultDataAPIBaseURL = "https://api-data.line.me"

	// maxContentBytes caps message content downloads at 20 MiB.
	maxContentBytes = int64(20 << 20)
	// maxReplyRunes is the character limit of a LINE text message.
	maxReplyRunes = 5000

	defaultTimeout = 10 * time.Second
)

// ErrContentTooLarge is returned when message content exceeds maxContentBytes.
var ErrContentTooLarge = errors.New("message content too large")

// Client calls the LINE Messaging API with a fixed channel access token.
type Client struct {
	logger   *slog.Logger
	client   *http.Client
	token    string
	apiBase  string
	dataBase string
}

// New builds a Client. Empty base URLs fall back to the public endpoints.
func New(log *slog.Logger, token, apiBaseURL, dataAPIBaseURL string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	apiBase := strings.TrimRight(strings.TrimSpace(apiBaseURL), "/")
	if apiBase == "" {
		apiBase = DefaultAPIBaseURL
	}
	dataBase := strings.TrimRight(strings.TrimSpace(dataAPIBaseURL), "/")
	if dataBase == "" {
		dataBase = DefaultDataAPIBaseURL
	}
	return &Client{
		logger:   log.With(slog.String("component", "line")),
		client:   &http.Client{Timeout: timeout},
		token:    strings.TrimSpace(token),
		apiBase:  apiBase,
		dataBase: dataBase,
	}
}

// FetchContent downloads the binary payload of a received message and returns
// the bytes together with the bare media type from the Content-Type header.
func (c *Client) FetchContent(ctx context.Context, messageID string) ([]byte, string, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, "", fmt.Errorf("message id is required")
	}
	url := fmt.Sprintf("%s/v2/bot/message/%s/content", c.dataBase, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build content request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch message content: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, "", fmt.Errorf("fetch message content status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read message content: %w", err)
	}
	if int64(len(data)) > maxContentBytes {
		return nil, "", fmt.Errorf("%w: max %d bytes", ErrContentTooLarge, maxContentBytes)
	}
	mime := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	c.logger.Debug("message content fetched",
		slog.String("message_id", messageID),
		slog.String("mime", mime),
		slog.Int("bytes", len(data)))
	return data, mime, nil
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

// Reply sends a single text message against a reply token. Reply tokens are
// single-use and expire quickly, so failures are not retried.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	replyToken = strings.TrimSpace(replyToken)
	if replyToken == "" {
		return fmt.Errorf("reply token is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("reply text is required")
	}
	payload, err := json.Marshal(replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: truncateReplyText(text)}},
	})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v2/bot/message/reply", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build reply request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send reply status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	c.logger.Debug("reply sent", slog.Int("chars", utf8.RuneCountInString(text)))
	return nil
}

// truncateReplyText truncates text to maxReplyRunes characters, appending
// "..." when truncation occurs.
func truncateReplyText(text string) string {
	if utf8.RuneCountInString(text) <= maxReplyRunes {
		return text
	}
	const suffix = "..."
	runes := []rune(text)
	return string(runes[:maxReplyRunes-len(suffix)]) + suffix
}
