// Package provider abstracts chat-completion backends behind a single
// Provider interface. It ships HTTP clients for the Anthropic and OpenAI
// APIs, the wire types shared by the rest of the module (Request,
// Message, Tool, ToolCall, Response, Usage), and a pricing table for
// estimating run cost from token usage.
package provider
