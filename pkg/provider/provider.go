package provider

import "context"

// Provider defines the interface for LLM API backends. Implementations may
// be HTTP-backed (Anthropic, OpenAI), scripted mocks, or spies.
type Provider interface {
	// Chat sends a chat request and returns the model response.
	Chat(ctx context.Context, req *Request) (*Response, error)

	// Name returns the provider identifier (e.g. "anthropic").
	Name() string
}

// Request represents a chat request to an LLM provider.
type Request struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"maxTokens,omitempty"`
}

// Message represents a single message in a conversation. Order within a
// conversation is chronological and semantically significant.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
}

// User builds a user-role message.
func User(content string) Message {
	return Message{Role: "user", Content: content}
}

// Tool describes a tool the model can invoke, in provider wire form.
// Parameters is a JSON Schema object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall represents a tool invocation requested by the model. Result is
// meaningful only when Executed is true: a tool call that was never run by
// an executor is a distinct state from one that ran and returned nil.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    any            `json:"result,omitempty"`
	Executed  bool           `json:"executed,omitempty"`
}

// Response represents a chat response from an LLM provider. It is immutable
// once returned.
type Response struct {
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	Usage      Usage      `json:"usage"`
	StopReason string     `json:"stopReason,omitempty"`
}

// Usage tracks token consumption. The field names form part of the stable
// JSON result surface and must not change.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// Add accumulates another usage into this one.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}
