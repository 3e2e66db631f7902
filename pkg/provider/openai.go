package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const openaiEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIHTTPClient sets a custom HTTP client (useful for testing).
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.backend.client = c }
}

// WithOpenAIBaseURL overrides the OpenAI API endpoint.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.backend.endpoint = url }
}

// WithOpenAIMaxRetries sets the retry budget for transient failures.
func WithOpenAIMaxRetries(n int) OpenAIOption {
	return func(p *OpenAIProvider) { p.backend.maxRetries = n }
}

// OpenAIProvider implements Provider against the OpenAI Chat Completions API.
type OpenAIProvider struct {
	backend httpBackend
}

// NewOpenAIProvider creates a client authenticated with the given API key.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{backend: newHTTPBackend(openaiEndpoint)}
	p.backend.headers = map[string]string{
		"Authorization": "Bearer " + apiKey,
	}
	p.backend.apiErrMsg = openaiErrMsg
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Chat sends one Chat Completions turn.
func (p *OpenAIProvider) Chat(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(encodeOpenAIRequest(req))
	if err != nil {
		return nil, fmt.Errorf("building request body: %w", err)
	}
	payload, err := p.backend.postWithRetry(ctx, "openai", body)
	if err != nil {
		return nil, err
	}
	var wire oaiResponse
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return wire.toResponse(), nil
}

// Chat Completions wire format.

type oaiRequest struct {
	Model       string    `json:"model"`
	Messages    []oaiMsg  `json:"messages"`
	Tools       []oaiTool `json:"tools,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type oaiMsg struct {
	Role       string        `json:"role"`
	Content    *string       `json:"content"`
	ToolCalls  []oaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type oaiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type oaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type oaiResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      oaiMsg `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func encodeOpenAIRequest(req *Request) oaiRequest {
	out := oaiRequest{Model: req.Model}
	if req.Temperature != 0 {
		t := req.Temperature
		out.Temperature = &t
	}
	if req.MaxTokens != 0 {
		m := req.MaxTokens
		out.MaxTokens = &m
	}
	for _, tool := range req.Tools {
		var ot oaiTool
		ot.Type = "function"
		ot.Function.Name = tool.Name
		ot.Function.Description = tool.Description
		ot.Function.Parameters = tool.Parameters
		out.Tools = append(out.Tools, ot)
	}

	// The system prompt rides in the messages array for OpenAI.
	if req.System != "" {
		s := req.System
		out.Messages = append(out.Messages, oaiMsg{Role: "system", Content: &s})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, encodeOAIMsg(m))
	}
	return out
}

func encodeOAIMsg(m Message) oaiMsg {
	om := oaiMsg{Role: m.Role}
	if m.Content != "" {
		c := m.Content
		om.Content = &c
	}
	if m.Role == "tool" {
		om.ToolCallID = m.ToolCallID
	}
	for _, tc := range m.ToolCalls {
		args, _ := json.Marshal(tc.Arguments)
		var otc oaiToolCall
		otc.ID = tc.ID
		otc.Type = "function"
		otc.Function.Name = tc.Name
		otc.Function.Arguments = string(args)
		om.ToolCalls = append(om.ToolCalls, otc)
	}
	return om
}

func (or *oaiResponse) toResponse() *Response {
	resp := &Response{
		Usage: Usage{
			InputTokens:  or.Usage.PromptTokens,
			OutputTokens: or.Usage.CompletionTokens,
			TotalTokens:  or.Usage.PromptTokens + or.Usage.CompletionTokens,
		},
	}
	if len(or.Choices) == 0 {
		return resp
	}

	choice := or.Choices[0]
	resp.StopReason = choice.FinishReason
	if choice.Message.Content != nil {
		resp.Content = *choice.Message.Content
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		json.Unmarshal([]byte(tc.Function.Arguments), &args)
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return resp
}

func openaiErrMsg(payload []byte) string {
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
