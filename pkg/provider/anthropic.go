package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"
)

// AnthropicOption configures an AnthropicProvider.
type AnthropicOption func(*AnthropicProvider)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) { p.backend.client = c }
}

// WithBaseURL overrides the Anthropic API endpoint.
func WithBaseURL(url string) AnthropicOption {
	return func(p *AnthropicProvider) { p.backend.endpoint = url }
}

// WithMaxRetries sets the retry budget for transient failures.
func WithMaxRetries(n int) AnthropicOption {
	return func(p *AnthropicProvider) { p.backend.maxRetries = n }
}

// AnthropicProvider implements Provider against the Anthropic Messages API.
type AnthropicProvider struct {
	backend httpBackend
}

// NewAnthropicProvider creates a client authenticated with the given API key.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{backend: newHTTPBackend(anthropicEndpoint)}
	p.backend.headers = map[string]string{
		"X-Api-Key":         apiKey,
		"Anthropic-Version": anthropicVersion,
	}
	p.backend.apiErrMsg = anthropicErrMsg
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Chat sends one Messages API turn.
func (p *AnthropicProvider) Chat(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(encodeAnthropicRequest(req))
	if err != nil {
		return nil, fmt.Errorf("building request body: %w", err)
	}
	payload, err := p.backend.postWithRetry(ctx, "anthropic", body)
	if err != nil {
		return nil, err
	}
	var wire anthResponse
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return wire.toResponse(), nil
}

// Messages API wire format.

type anthRequest struct {
	Model       string     `json:"model"`
	MaxTokens   int        `json:"max_tokens"`
	System      string     `json:"system,omitempty"`
	Messages    []anthMsg  `json:"messages"`
	Tools       []anthTool `json:"tools,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
}

type anthMsg struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// anthBlock is a content block in either direction: text and tool_use
// blocks appear in requests and responses, tool_result only in requests.
type anthBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type anthResponse struct {
	ID         string      `json:"id"`
	Role       string      `json:"role"`
	Content    []anthBlock `json:"content"`
	StopReason string      `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func encodeAnthropicRequest(req *Request) anthRequest {
	out := anthRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    req.System,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = 4096
	}
	if req.Temperature != 0 {
		t := req.Temperature
		out.Temperature = &t
	}
	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, anthTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, encodeAnthMsg(m))
	}
	return out
}

func encodeAnthMsg(m Message) anthMsg {
	switch {
	case m.Role == "tool":
		// Tool results go back as user-role tool_result blocks.
		return anthMsg{Role: "user", Content: []anthBlock{{
			Type:      "tool_result",
			ToolUseID: m.ToolCallID,
			Content:   m.Content,
		}}}
	case len(m.ToolCalls) > 0:
		blocks := make([]anthBlock, 0, len(m.ToolCalls)+1)
		if m.Content != "" {
			blocks = append(blocks, anthBlock{Type: "text", Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			blocks = append(blocks, anthBlock{
				Type:  "tool_use",
				ID:    tc.ID,
				Name:  tc.Name,
				Input: tc.Arguments,
			})
		}
		return anthMsg{Role: m.Role, Content: blocks}
	default:
		return anthMsg{Role: m.Role, Content: m.Content}
	}
}

func (ar *anthResponse) toResponse() *Response {
	resp := &Response{
		StopReason: ar.StopReason,
		Usage: Usage{
			InputTokens:  ar.Usage.InputTokens,
			OutputTokens: ar.Usage.OutputTokens,
			TotalTokens:  ar.Usage.InputTokens + ar.Usage.OutputTokens,
		},
	}
	var text []string
	for _, block := range ar.Content {
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	resp.Content = strings.Join(text, "\n")
	return resp
}

func anthropicErrMsg(payload []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(payload, &e) != nil {
		return ""
	}
	return e.Error.Message
}
