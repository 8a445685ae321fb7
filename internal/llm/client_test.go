package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNormalizeBaseURL_StripsChatCompletionsSuffix(t *testing.T) {
	// Strips a trailing "/chat/completions" suffix
	got := normalizeBaseURL("https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions")
	want := "https://dashscope.aliyuncs.com/compatible-mode/v1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeBaseURL_StripTrailingSlash(t *testing.T) {
	// Strips a trailing slash without "/chat/completions"
	got := normalizeBaseURL("https://api.openai.com/v1/")
	want := "https://api.openai.com/v1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeBaseURL_StripSlashAndSuffix(t *testing.T) {
	// Strips trailing slash AND "/chat/completions" when both are present
	got := normalizeBaseURL("https://api.example.com/v1/chat/completions/")
	want := "https://api.example.com/v1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeBaseURL_NoSuffixUnchanged(t *testing.T) {
	// Returns the URL unchanged when neither suffix is present
	got := normalizeBaseURL("https://api.deepseek.com")
	if got != "https://api.deepseek.com" {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestNormalizeBaseURL_EmptyInput(t *testing.T) {
	// Returns "" for empty input
	if got := normalizeBaseURL(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

// ── New ──────────────────────────────────────────────────────────────────────

func TestNew_MissingAPIKeyIsConfigurationError(t *testing.T) {
	// Returns *ConfigurationError when APIKey is empty
	_, err := New(Config{Model: "gpt-4o-mini"})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "API key") {
		t.Errorf("expected 'API key' in error, got %q", err.Error())
	}
}

func TestNew_ListsAllMissingFields(t *testing.T) {
	// Returns *ConfigurationError when Model is empty, listing every missing field
	_, err := New(Config{Label: "PLANNER"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	msg := err.Error()
	if !strings.Contains(msg, "API key, model") {
		t.Errorf("expected comma-separated missing fields, got %q", msg)
	}
	if !strings.Contains(msg, "PLANNER") {
		t.Errorf("expected label in error, got %q", msg)
	}
}

func TestNew_DefaultsBaseURLAndTimeout(t *testing.T) {
	// Falls back to DefaultBaseURL when BaseURL is empty; uses a 120s timeout when Timeout is zero
	c, err := New(Config{APIKey: "sk-test", Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL: got %q, want %q", c.baseURL, DefaultBaseURL)
	}
	if c.httpClient.Timeout != 120*time.Second {
		t.Errorf("timeout: got %v, want 120s", c.httpClient.Timeout)
	}
}

func TestNew_NormalizesBaseURL(t *testing.T) {
	// Normalizes BaseURL with normalizeBaseURL
	c, err := New(Config{APIKey: "sk-test", Model: "m", BaseURL: "http://localhost:9/v1/chat/completions"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.baseURL != "http://localhost:9/v1" {
		t.Errorf("baseURL: got %q", c.baseURL)
	}
}

// ── Chat ─────────────────────────────────────────────────────────────────────

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini", Temperature: 0.2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestChat_SendsRequestAndReturnsFirstChoice(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"first"}},{"message":{"content":"second"}}],"usage":{"prompt_tokens":3,"completion_tokens":5,"total_tokens":8}}`))
	})

	msgs := []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "hi"}}
	content, usage, err := c.Chat(context.Background(), msgs, 1200)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if content != "first" {
		t.Errorf("content: got %q, want first", content)
	}
	if usage.TotalTokens != 8 {
		t.Errorf("total tokens: got %d, want 8", usage.TotalTokens)
	}
	if got.Model != "gpt-4o-mini" || got.MaxTokens != 1200 || got.Temperature != 0.2 {
		t.Errorf("unexpected request params: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "hi" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
}

func TestChat_ReturnsContentVerbatim(t *testing.T) {
	// Content is not validated or trimmed by the gateway
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  not json at all\n"}}]}`))
	})
	content, _, err := c.Chat(context.Background(), nil, 10)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if content != "  not json at all\n" {
		t.Errorf("got %q", content)
	}
}

func TestChat_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-200 status", http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`},
		{"malformed envelope", http.StatusOK, `<html>`},
		{"api error object", http.StatusOK, `{"error":{"message":"bad key"}}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"null content", http.StatusOK, `{"choices":[{"message":{"content":null}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, _, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, 10)
			var upErr *UpstreamError
			if !errors.As(err, &upErr) {
				t.Fatalf("expected *UpstreamError, got %v", err)
			}
		})
	}
}

func TestChat_TransportFailureIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	c, err := New(Config{APIKey: "sk", Model: "m", BaseURL: url})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, _, err = c.Chat(context.Background(), nil, 10)
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
}

// ── StripThinkBlocks / StripFences ───────────────────────────────────────────

func TestStripThinkBlocks_RemovesSingleBlock(t *testing.T) {
	// Removes a single <think>...</think> block
	got := StripThinkBlocks("<think>let me reason</think>\n{\"action\": \"NoOp\"}")
	if got != "{\"action\": \"NoOp\"}" {
		t.Errorf("got %q", got)
	}
}

func TestStripThinkBlocks_RemovesMultipleBlocks(t *testing.T) {
	// Removes multiple <think>...</think> blocks
	got := StripThinkBlocks("<think>first</think>{\"a\":1}<think>second</think>")
	if strings.Contains(got, "<think>") || strings.Contains(got, "</think>") {
		t.Errorf("expected all think blocks removed, got %q", got)
	}
}

func TestStripThinkBlocks_UnclosedBlockStrippedToEnd(t *testing.T) {
	// Strips an unclosed <think> block from its start to end of string
	got := StripThinkBlocks("{\"a\":1}<think>orphaned reasoning")
	if got != "{\"a\":1}" {
		t.Errorf("got %q", got)
	}
}

func TestStripThinkBlocks_NoTagReturnedUnchanged(t *testing.T) {
	// Returns s unchanged when no <think> tag is present
	input := "{\"objective\": \"x\"}"
	if got := StripThinkBlocks(input); got != input {
		t.Errorf("expected unchanged, got %q", got)
	}
}

func TestStripFences_RemovesJSONFence(t *testing.T) {
	// Removes an opening fence line with a language tag and the closing fence
	got := StripFences("```json\n{\"a\":1}\n```")
	if got != "{\"a\":1}" {
		t.Errorf("got %q", got)
	}
}

func TestStripFences_UnfencedTrimmed(t *testing.T) {
	// Returns unfenced input trimmed but otherwise unchanged
	if got := StripFences("  {\"a\":1}\n"); got != "{\"a\":1}" {
		t.Errorf("got %q", got)
	}
}

// ── DecodeObject ─────────────────────────────────────────────────────────────

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"bare object", `{"a":1}`, false},
		{"fenced object", "```json\n{\"a\":1}\n```", false},
		{"think tag inside string", `{"a":1,"note":"models wrap thoughts in <think> tags"}`, false},
		{"fenced with think tag inside string", "```json\n{\"a\":1,\"note\":\"<think>\"}\n```", false},
		{"leading think block", "<think>plan it</think>\n{\"a\":1}", false},
		{"trailing think block", "{\"a\":1}<think>after</think>", false},
		{"array", `[{"a":1}]`, true},
		{"null", `null`, true},
		{"trailing brace", `{"a":1}}`, true},
		{"trailing prose", `{"a":1} hope this helps`, true},
		{"truncated", `{"a":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v struct {
				A    int    `json:"a"`
				Note string `json:"note"`
			}
			err := DecodeObject(tt.raw, &v)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeObject(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && v.A != 1 {
				t.Errorf("expected a=1, got %d", v.A)
			}
		})
	}
}
