// Package preprocess is a client for the text cleaning service. It satisfies
// the same render/invoke contract as the chat client so the runner can drive
// either backend.
package preprocess

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

	"github.com/yourorg/textbatch/pkg/types"
)

const endpointPath = "/v1/nlp/preprocess"

// Client calls one cleaning service instance with a fixed option set.
type Client struct {
	BaseURL    string
	APIKey     string
	Options    types.CleaningOptions
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type request struct {
	Text    string                `json:"text"`
	Options types.CleaningOptions `json:"options"`
	ID      string                `json:"id,omitempty"`
	Author  string                `json:"author,omitempty"`
}

// Render encodes the row and the configured cleaning options as the request
// body. The rendered string doubles as the cache fingerprint input, so two
// rows with the same text but different options never collide.
func (c *Client) Render(row types.Row) string {
	body, err := json.Marshal(request{
		Text:    row.Payload,
		Options: c.Options,
		ID:      row.ID,
		Author:  row.Author,
	})
	if err != nil {
		return row.Payload
	}
	return string(body)
}

// System returns the empty string; the cleaning service has no system prompt.
func (c *Client) System() string { return "" }

// Invoke posts one cleaning request. The service wraps its result in a
// {"data": {...}} envelope; the inner object is returned when present, the
// whole body otherwise.
func (c *Client) Invoke(ctx context.Context, payload string) (string, error) {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + endpointPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(payload)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.Logger != nil {
		c.Logger.Debug("preprocess request", "url", endpoint, "payload_len", len(payload))
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
		return "", fmt.Errorf("preprocess error status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Data) > 0 {
		return string(envelope.Data), nil
	}
	return string(data), nil
}
