package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yourorg/textbatch/pkg/types"
)

func TestRender(t *testing.T) {
	c := &Client{PromptTemplate: "Classify: {input_text}\nAnswer in JSON."}
	got := c.Render(types.Row{Payload: "some weibo post"})
	if got != "Classify: some weibo post\nAnswer in JSON." {
		t.Fatalf("unexpected prompt: %q", got)
	}
}

func TestInvoke(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": `{"sentiment": "positive"}`}},
			},
		})
	}))
	defer srv.Close()

	c := &Client{
		BaseURL:      srv.URL + "/v1",
		APIKey:       "test-key",
		Model:        "gpt-4o-mini",
		MaxTokens:    512,
		Temperature:  0.1,
		SystemPrompt: "You are a classifier.",
		HTTPClient:   srv.Client(),
	}
	got, err := c.Invoke(context.Background(), "classify this")
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"sentiment": "positive"}` {
		t.Fatalf("unexpected content: %q", got)
	}
	if captured["model"] != "gpt-4o-mini" {
		t.Fatalf("model not sent: %v", captured["model"])
	}
	msgs := captured["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(msgs))
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "You are a classifier." {
		t.Fatalf("unexpected system message: %v", first)
	}
}

func TestInvokeNoSystemPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if n := len(req["messages"].([]any)); n != 1 {
			t.Errorf("expected only the user message, got %d", n)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
		})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	if _, err := c.Invoke(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
}

func TestInvokeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := c.Invoke(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 429") || !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Fatalf("error should carry status and body: %v", err)
	}
}

func TestInvokeEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	if _, err := c.Invoke(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestInvokeContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	if _, err := c.Invoke(ctx, "hi"); err == nil {
		t.Fatal("expected context error")
	}
}
