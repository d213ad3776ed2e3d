package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable is returned when no LLM endpoint is configured. Callers are
// expected to fall back to their deterministic path, never to surface it.
var ErrUnavailable = errors.New("llm: no provider configured")

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator is the text-generation capability consumed by the routing and
// structural packages. A single failed call means "use the fallback"; there
// is no retry layer here.
type Generator interface {
	Chat(ctx context.Context, messages []Message, temperature float64) (string, error)
	ChatJSON(ctx context.Context, messages []Message, temperature float64) ([]byte, error)
}

// ChatRequest represents an OpenAI-compatible chat completion request
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat requests structured output from providers that support it
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatResponse represents an OpenAI-compatible chat completion response
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Choice represents a single completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason *string `json:"finish_reason"`
}

// Client wraps HTTP access to an OpenAI-compatible chat endpoint
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// NewClient creates a new LLM client for the given endpoint and model.
func NewClient(endpoint, apiKey, model string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
	}
}

// Chat sends a chat completion request and returns the reply text.
func (c *Client) Chat(ctx context.Context, messages []Message, temperature float64) (string, error) {
	resp, err := c.complete(ctx, ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ChatJSON sends a chat completion request in JSON mode and returns the raw
// JSON object payload. Providers that ignore response_format and wrap the
// object in prose or code fences are tolerated: the outermost object is
// extracted from the reply text.
func (c *Client) ChatJSON(ctx context.Context, messages []Message, temperature float64) ([]byte, error) {
	resp, err := c.complete(ctx, ChatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    temperature,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	return ExtractJSONObject(resp.Choices[0].Message.Content)
}

func (c *Client) complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.endpoint == "" {
		return nil, ErrUnavailable
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &chatResp, nil
}

// GetModel returns the configured model
func (c *Client) GetModel() string {
	return c.model
}

// ExtractJSONObject pulls the outermost JSON object out of a model reply.
// Handles bare objects, ```json fences, and objects embedded in prose.
func ExtractJSONObject(content string) ([]byte, error) {
	content = strings.TrimSpace(content)

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	candidate := []byte(content[start : end+1])
	if !json.Valid(candidate) {
		return nil, fmt.Errorf("invalid JSON object in reply")
	}
	return candidate, nil
}
