// Package llm is an OpenAI-compatible chat completions client. Each call is
// a single attempt; retry and rate limiting belong to the runner that owns
// the request.
package llm

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

	"github.com/yourorg/textbatch/pkg/types"
)

// Client drives one chat completions endpoint with a fixed model and prompt
// template.
type Client struct {
	BaseURL        string
	APIKey         string
	Model          string
	MaxTokens      int
	Temperature    float64
	SystemPrompt   string
	PromptTemplate string
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// inputPlaceholder is substituted with the row's text when rendering the
// prompt template.
const inputPlaceholder = "{input_text}"

// Render fills the prompt template with the row's text.
func (c *Client) Render(row types.Row) string {
	return strings.ReplaceAll(c.PromptTemplate, inputPlaceholder, row.Payload)
}

// System returns the configured system prompt.
func (c *Client) System() string { return c.SystemPrompt }

// Invoke sends one chat request and returns the first choice's content.
func (c *Client) Invoke(ctx context.Context, prompt string) (string, error) {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"

	messages := make([]map[string]string, 0, 2)
	if c.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": c.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})
	payload := map[string]interface{}{
		"model":       c.Model,
		"max_tokens":  c.MaxTokens,
		"temperature": c.Temperature,
		"messages":    messages,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if c.Logger != nil {
		c.Logger.Debug("llm request", "url", endpoint, "model", c.Model, "prompt_len", len(prompt))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm error status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("llm response has no choices")
	}
	content := out.Choices[0].Message.Content
	if c.Logger != nil {
		c.Logger.Debug("llm response", "content_len", len(content))
	}
	return content, nil
}
