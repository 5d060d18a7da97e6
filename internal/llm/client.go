/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - LLM Gateway Client
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package llm is the completion gateway consumed by the sandbox agent. It
// owns model fallback: a retryable failure on the primary model walks an
// ordered fallback list, a non-retryable failure is surfaced immediately.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sqlsandbox/internal/logging"
)

// Completion is a successful gateway response.
type Completion struct {
	Text         string
	Model        string
	FallbackUsed bool
	ModelsTried  []string
}

// Client talks to an OpenAI-compatible chat completion API (OpenRouter or
// Ollama).
type Client struct {
	provider   string // "openrouter" or "ollama"
	apiKey     string // Only for OpenRouter
	baseURL    string
	model      string
	fallbacks  []string
	maxTokens  int
	retryDelay time.Duration
	httpClient *http.Client
}

// NewClient creates a gateway client. An empty baseURL selects the
// provider's default endpoint.
func NewClient(provider, apiKey, baseURL, model string, fallbacks []string, maxTokens int) *Client {
	if baseURL == "" {
		switch provider {
		case "openrouter":
			baseURL = "https://openrouter.ai/api/v1"
		case "ollama":
			baseURL = "http://localhost:11434/v1"
		}
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Client{
		provider:   provider,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		fallbacks:  fallbacks,
		maxTokens:  maxTokens,
		retryDelay: 500 * time.Millisecond,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// IsConfigured returns whether the client is properly configured
func (c *Client) IsConfigured() bool {
	switch c.provider {
	case "openrouter":
		return c.apiKey != "" && c.model != ""
	case "ollama":
		return c.baseURL != "" && c.model != ""
	default:
		return false
	}
}

// Complete sends the prompt to the primary model and, on retryable failures
// only, iterates the fallback list in order. It stops at the first success
// or the first non-retryable error.
func (c *Client) Complete(ctx context.Context, prompt string) (Completion, error) {
	if !c.IsConfigured() {
		return Completion{}, fmt.Errorf("LLM client not configured")
	}

	models := make([]string, 0, 1+len(c.fallbacks))
	models = append(models, c.model)
	for _, m := range c.fallbacks {
		if m != c.model {
			models = append(models, m)
		}
	}

	var tried []string
	var lastErr error
	for i, model := range models {
		if i > 0 {
			logging.Info("trying fallback model", "model", model, "attempt", i)
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return Completion{}, ctx.Err()
			}
		}
		tried = append(tried, model)

		text, err := c.completeOnce(ctx, model, prompt)
		if err == nil {
			return Completion{
				Text:         text,
				Model:        model,
				FallbackUsed: i > 0,
				ModelsTried:  tried,
			}, nil
		}

		lastErr = err
		if !isRetryable(err) {
			logging.Error("completion failed with non-retryable error", "model", model, "error", err.Error())
			break
		}
		logging.Warn("completion failed, will try next model", "model", model, "error", err.Error())
	}

	return Completion{}, fmt.Errorf("completion failed (models tried: %s): %w",
		strings.Join(tried, ", "), lastErr)
}

// completeOnce performs a single chat completion call against one model.
func (c *Client) completeOnce(ctx context.Context, model, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:     model,
		MaxTokens: c.maxTokens,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Stream: false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures are retryable by definition.
		return "", &apiError{status: 0, message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &apiError{status: resp.StatusCode, message: string(body)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// apiError carries the HTTP status so failures can be classified. Status 0
// means the request never completed.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	if e.status == 0 {
		return fmt.Sprintf("request failed: %s", e.message)
	}
	return fmt.Sprintf("API returned status %d: %s", e.status, e.message)
}

// isRetryable reports whether a failure justifies moving on to the next
// model: transport errors, rate limits, and server-side errors do; client
// errors (bad key, bad request) do not.
func isRetryable(err error) bool {
	apiErr, ok := err.(*apiError)
	if !ok {
		return false
	}
	return apiErr.status == 0 ||
		apiErr.status == http.StatusTooManyRequests ||
		apiErr.status >= 500
}

// Internal types for the OpenAI-compatible chat API
type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}
