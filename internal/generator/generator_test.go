package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "just a post", "just a post"},
		{"whitespace", "  padded out \n", "padded out"},
		{"double quotes", `"quoted post"`, "quoted post"},
		{"smart quotes", "“fancy post”", "fancy post"},
		{"tweet label", "Tweet: the actual text", "the actual text"},
		{"code fence", "```\nfenced text\n```", "fenced text"},
		{"fence with language", "```text\nfenced text\n```", "fenced text"},
		{"internal quotes kept", `he said "gm" and left`, `he said "gm" and left`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPrompts(t *testing.T) {
	p := PostPrompt("modular blockchains")
	if !strings.Contains(p, "modular blockchains") {
		t.Errorf("topic missing from prompt: %s", p)
	}

	r := ReplyPrompt("interesting take on rollups")
	if !strings.Contains(r, "interesting take on rollups") {
		t.Errorf("tweet text missing from reply prompt: %s", r)
	}
}

func TestNew_ProviderSelection(t *testing.T) {
	if _, err := New(Config{Provider: "openai", APIKey: "k"}); err != nil {
		t.Errorf("openai provider failed: %v", err)
	}
	if _, err := New(Config{Provider: "betamax"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", auth)
		}

		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "  generated text  "}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})
	got, err := c.Complete(context.Background(), "write something")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "generated text" {
		t.Errorf("expected trimmed response, got %q", got)
	}
}

func TestOpenAIClient_RetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "after retry"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 10 * time.Second})
	got, err := c.Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "after retry" {
		t.Errorf("expected retry to succeed, got %q", got)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestOpenAIClient_HardFailureNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{APIKey: "bad", BaseURL: srv.URL})
	if _, err := c.Complete(context.Background(), "p"); err == nil {
		t.Fatal("expected error on 401")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("401 should not be retried, got %d calls", calls)
	}
}

func TestOpenAIClient_MissingKey(t *testing.T) {
	c := NewOpenAIClient(Config{})
	if _, err := c.Complete(context.Background(), "p"); err == nil {
		t.Error("expected error when API key is missing")
	}
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	if _, err := NewGeminiClient(Config{}); err == nil {
		t.Error("expected error when API key is missing")
	}
}
