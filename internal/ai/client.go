// Package ai submits staged media files to a Dify chat workflow and returns
// the workflow's text answer.
package ai

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

const (
	// DefaultBaseURL is the public Dify API endpoint.
	DefaultBaseURL = "https://api.dify.ai/v1"

	// analysisQuery is the fixed prompt sent with every file.
	analysisQuery = "Please analyze this file."
	// requestUser identifies the relay to the workflow.
	requestUser = "hookline-relay"

	defaultTimeout = 30 * time.Second
)

// Client calls a Dify-compatible chat API in blocking mode.
type Client struct {
	logger *slog.Logger
	client *http.Client
	apiKey string
	base   string
}

// New builds a Client. An empty base URL falls back to the public endpoint.
func New(log *slog.Logger, apiKey, baseURL string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		logger: log.With(slog.String("component", "ai")),
		client: &http.Client{Timeout: timeout},
		apiKey: strings.TrimSpace(apiKey),
		base:   base,
	}
}

type fileInput struct {
	Type           string `json:"type"`
	TransferMethod string `json:"transfer_method"`
	URL            string `json:"url"`
}

type chatRequest struct {
	Inputs       map[string]any `json:"inputs"`
	Query        string         `json:"query"`
	ResponseMode string         `json:"response_mode"`
	User         string         `json:"user"`
	Files        []fileInput    `json:"files"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

// AnalyzeFile asks the workflow to describe the file behind fileURL. The URL
// must be reachable by the workflow without credentials. fileKind is the Dify
// file type bucket (image, video, audio or document).
func (c *Client) AnalyzeFile(ctx context.Context, fileURL, fileKind string) (string, error) {
	fileURL = strings.TrimSpace(fileURL)
	if fileURL == "" {
		return "", fmt.Errorf("file url is required")
	}
	fileKind = strings.TrimSpace(fileKind)
	if fileKind == "" {
		fileKind = "document"
	}
	payload, err := json.Marshal(chatRequest{
		Inputs:       map[string]any{},
		Query:        analysisQuery,
		ResponseMode: "blocking",
		User:         requestUser,
		Files: []fileInput{{
			Type:           fileKind,
			TransferMethod: "remote_url",
			URL:            fileURL,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat-messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat request status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	answer := strings.TrimSpace(out.Answer)
	if answer == "" {
		return "", fmt.Errorf("workflow returned an empty answer")
	}
	c.logger.Debug("file analyzed", slog.String("kind", fileKind), slog.Int("answer_chars", len(answer)))
	return answer, nil
}
