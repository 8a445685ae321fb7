package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	defaultTimeout = 120 * time.Second
)

var errNotObject = errors.New("expected a JSON object")

// Message roles accepted by the chat completions endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of a chat request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config is the explicit gateway configuration. The package never reads the
// environment itself; callers (see internal/config) resolve it.
type Config struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Label       string        `yaml:"-"` // tag used in debug log lines; defaults to "LLM"
}

// Client is an OpenAI-compatible chat completions client.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	label       string
	httpClient  *http.Client
}

// normalizeBaseURL strips trailing slashes and the "/chat/completions" suffix
// so the path is never doubled when Chat appends "/chat/completions" itself.
//
// Expectations:
//   - Strips a trailing "/chat/completions" suffix
//   - Strips a trailing slash without "/chat/completions"
//   - Strips trailing slash AND "/chat/completions" when both are present
//   - Returns the URL unchanged when neither suffix is present
//   - Returns "" for empty input
func normalizeBaseURL(raw string) string {
	s := strings.TrimRight(raw, "/")
	return strings.TrimSuffix(s, "/chat/completions")
}

// New builds a Client from cfg.
//
// Expectations:
//   - Returns *ConfigurationError when APIKey is empty
//   - Returns *ConfigurationError when Model is empty, listing every missing field
//   - Falls back to DefaultBaseURL when BaseURL is empty
//   - Normalizes BaseURL with normalizeBaseURL
//   - Uses a 120s HTTP timeout when Timeout is zero
func New(cfg Config) (*Client, error) {
	label := cfg.Label
	if label == "" {
		label = "LLM"
	}
	var missing []string
	if strings.TrimSpace(cfg.APIKey) == "" {
		missing = append(missing, "API key")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		missing = append(missing, "model")
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Label: label, Missing: missing}
	}
	baseURL := normalizeBaseURL(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		label:       label,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	TotalTokens      int   `json:"total_tokens"`
	ElapsedMs        int64 `json:"-"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat sends messages and returns the first choice's content verbatim. It does
// not check that the content is JSON. Every failure after construction is an
// *UpstreamError; nothing is retried.
func (c *Client) Chat(ctx context.Context, messages []Message, maxTokens int) (string, Usage, error) {
	for _, m := range messages {
		log.Printf("[%s] ── %s PROMPT ──\n%s", c.label, strings.ToUpper(m.Role), m.Content)
	}

	payload := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", Usage{}, upstream("marshal request", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, upstream("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Usage{}, upstream("http request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, upstream("read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", Usage{}, &UpstreamError{Op: "http status", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", Usage{}, upstream("unmarshal response", err)
	}
	if chatResp.Error != nil {
		return "", Usage{}, upstream("api error", fmt.Errorf("%s", chatResp.Error.Message))
	}
	if len(chatResp.Choices) == 0 {
		return "", Usage{}, upstream("decode response", fmt.Errorf("no choices in response"))
	}
	content := chatResp.Choices[0].Message.Content
	if content == nil {
		return "", Usage{}, upstream("decode response", fmt.Errorf("first choice has no message content"))
	}

	usage := chatResp.Usage
	usage.ElapsedMs = time.Since(start).Milliseconds()
	log.Printf("[%s] ── RESPONSE (tokens: prompt=%d completion=%d, %dms) ──\n%s",
		c.label, usage.PromptTokens, usage.CompletionTokens, usage.ElapsedMs, *content)
	return *content, usage, nil
}

// StripThinkBlocks removes all <think>...</think> blocks from s.
// Reasoning models emit these before the structured output.
//
// Expectations:
//   - Removes a single <think>...</think> block
//   - Removes multiple <think>...</think> blocks
//   - Strips an unclosed <think> block from its start to end of string
//   - Returns s unchanged when no <think> tag is present
func StripThinkBlocks(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "</think>")
		if end == -1 {
			s = s[:start]
			break
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

// StripFences removes a markdown code fence (```json ... ```) wrapping model
// output, after stripping <think> blocks.
//
// Expectations:
//   - Removes an opening fence line with or without a language tag
//   - Removes the closing fence
//   - Returns unfenced input trimmed but otherwise unchanged
func StripFences(s string) string {
	return stripFence(StripThinkBlocks(strings.TrimSpace(s)))
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		if i := strings.LastIndex(s, "```"); i != -1 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

// DecodeObject strict-decodes model output into v. The text must hold exactly
// one JSON object; arrays, scalars, null and trailing content are rejected.
// The reply is tried as-is first, then without a code fence, then without
// fence and <think> blocks. The first error is returned when all fail.
//
// Expectations:
//   - Decodes a fenced or bare JSON object
//   - Decodes a valid object whose string values contain "<think>"
//   - Decodes an object preceded by a <think> block
//   - Returns an error when the top level is not an object
//   - Returns an error when content follows the object
func DecodeObject(raw string, v any) error {
	text := strings.TrimSpace(raw)
	firstErr := decodeOne(text, v)
	if firstErr == nil {
		return nil
	}
	tried := text
	for _, candidate := range []string{stripFence(text), StripFences(text)} {
		if candidate == tried {
			continue
		}
		tried = candidate
		if err := decodeOne(candidate, v); err == nil {
			return nil
		}
	}
	return firstErr
}

func decodeOne(text string, v any) error {
	if !strings.HasPrefix(text, "{") {
		return errNotObject
	}
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected content after JSON object at offset %d", dec.InputOffset())
	}
	return nil
}
