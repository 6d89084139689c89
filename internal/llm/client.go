// Package llm provides the HTTP client for the local inference server, which
// speaks the OpenAI chat-completions wire format.
//
// Two behaviors are contractual here:
//   - Upstream failures keep their original HTTP status. A 503 from the local
//     server is reported as a 503 to the API caller, with a truncated body
//     excerpt, so operators can diagnose the inference box directly.
//   - Response parsing is tolerant. Different local servers put the
//     completion text in different places; extraction tries the known shapes
//     in preference order and falls back to "" rather than erroring.
//
// The client carries no default timeout: cancellation is the caller's job via
// the request context. A stalled upstream holds the request open until the
// caller gives up.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"
)

// maxBodyExcerpt caps how much of an upstream error body is carried in an
// UpstreamError.
const maxBodyExcerpt = 400

// Message is one turn in an OpenAI-style chat transcript.
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Request describes one completion call.
type Request struct {
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Tools       []json.RawMessage `json:"tools,omitempty"`
	ToolChoice  string            `json:"tool_choice,omitempty"`
}

// Usage is the token accounting reported by the upstream, when present.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the extracted result of one call.
type Completion struct {
	Text  string
	Usage *Usage
}

// UpstreamError reports a non-2xx response from the inference server. The
// Status is propagated verbatim to the original API caller.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream inference error: status %d: %s", e.Status, e.Body)
}

// Config holds the endpoint and credentials for one client.
type Config struct {
	URL    string // full chat-completions URL
	APIKey string // optional, sent as Authorization: Bearer
}

// Client talks to the local inference server. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient builds a client for the given endpoint. When httpClient is nil a
// default client without a timeout is used (cancellation via context only).
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// Complete performs one chat-completion call. When req.Tools is non-empty,
// tool_choice is forced to "auto". Non-2xx responses return *UpstreamError;
// 2xx responses never fail on shape mismatches.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	if len(req.Tools) > 0 && req.ToolChoice == "" {
		req.ToolChoice = "auto"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call inference server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: Excerpt(string(raw), maxBodyExcerpt)}
	}

	var parsed completionEnvelope
	// Shape mismatches are tolerated; text extraction below handles the gaps.
	_ = json.Unmarshal(raw, &parsed)

	return &Completion{Text: parsed.text(), Usage: parsed.Usage}, nil
}

// completionEnvelope covers the response shapes seen across local servers.
type completionEnvelope struct {
	Choices []struct {
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta *struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text string `json:"text"`
	} `json:"choices"`
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	Usage *Usage `json:"usage"`
}

// text extracts the completion text, trying choices[0].message.content,
// choices[0].delta.content, choices[0].text, then message.content, in that
// order. Absent all of them it returns "".
func (e *completionEnvelope) text() string {
	if len(e.Choices) > 0 {
		ch := e.Choices[0]
		if ch.Message != nil && ch.Message.Content != "" {
			return ch.Message.Content
		}
		if ch.Delta != nil && ch.Delta.Content != "" {
			return ch.Delta.Content
		}
		if ch.Text != "" {
			return ch.Text
		}
	}
	if e.Message != nil {
		return e.Message.Content
	}
	return ""
}

// Excerpt truncates s to at most n bytes for error reporting. The cut backs
// off to a rune boundary so a multi-byte sequence is never split, keeping the
// excerpt valid UTF-8 when s is.
func Excerpt(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
