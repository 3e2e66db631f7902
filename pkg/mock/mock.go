// Package mock provides scripted test doubles: a provider that replays
// canned responses and tool executors that return scripted results while
// recording every invocation. Both make suites deterministic and runnable
// without API keys.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tgrover/llmexpect/eval"
	"github.com/tgrover/llmexpect/pkg/provider"
)

// Provider replays pre-configured responses in sequence. It records every
// request it receives and is safe for concurrent use.
type Provider struct {
	mu        sync.Mutex
	responses []provider.Response
	requests  []*provider.Request
	idx       int
}

// NewProvider creates a Provider that returns the given responses in
// order. Once all responses are consumed, subsequent calls return an
// error.
func NewProvider(responses ...provider.Response) *Provider {
	return &Provider{responses: responses}
}

// Chat returns the next pre-configured response. The request contents are
// recorded but otherwise ignored.
func (m *Provider) Chat(_ context.Context, req *provider.Request) (*provider.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.idx >= len(m.responses) {
		return nil, fmt.Errorf("mock provider: no more responses (consumed %d/%d)", m.idx, len(m.responses))
	}
	resp := m.responses[m.idx]
	m.idx++
	return &resp, nil
}

// Name returns "mock".
func (m *Provider) Name() string { return "mock" }

// Requests returns a copy of every request received, in order.
func (m *Provider) Requests() []*provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*provider.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// ToolResponse defines a single scripted tool result. Err, when set, makes
// the executor return an error instead of a result. Delay, when set, makes
// the executor sleep before returning.
type ToolResponse struct {
	Result any
	Err    string
	Delay  time.Duration
}

// CallRecord captures one scripted-tool invocation for later inspection.
type CallRecord struct {
	Tool      string
	Args      map[string]any
	Result    any
	Err       string
	Timestamp time.Time
}

// Registry builds scripted tool executors and records their calls. All
// methods are safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	calls []CallRecord
	idx   map[string]int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{idx: make(map[string]int)}
}

// Tool returns an eval.Tool whose executor walks the scripted responses in
// order, repeating the last one once the sequence is exhausted. Every call
// is recorded.
func (r *Registry) Tool(name string, responses ...ToolResponse) eval.Tool {
	return eval.Tool{
		Name: name,
		Execute: func(args map[string]any) (any, error) {
			return r.resolve(name, args, responses)
		},
	}
}

// ToolReturning is shorthand for a tool scripted with plain result values.
func (r *Registry) ToolReturning(name string, results ...any) eval.Tool {
	responses := make([]ToolResponse, len(results))
	for i, res := range results {
		responses[i] = ToolResponse{Result: res}
	}
	return r.Tool(name, responses...)
}

// ToolFailing returns a tool whose executor always errors.
func (r *Registry) ToolFailing(name, errMsg string) eval.Tool {
	return r.Tool(name, ToolResponse{Err: errMsg})
}

func (r *Registry) resolve(name string, args map[string]any, responses []ToolResponse) (any, error) {
	if len(responses) == 0 {
		return nil, fmt.Errorf("no responses scripted for tool %q", name)
	}

	r.mu.Lock()
	i := r.idx[name]
	if i >= len(responses) {
		i = len(responses) - 1
	} else {
		r.idx[name] = i + 1
	}
	resp := responses[i]
	r.mu.Unlock()

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	r.mu.Lock()
	r.calls = append(r.calls, CallRecord{
		Tool:      name,
		Args:      args,
		Result:    resp.Result,
		Err:       resp.Err,
		Timestamp: time.Now(),
	})
	r.mu.Unlock()

	if resp.Err != "" {
		return nil, fmt.Errorf("tool %q: %s", name, resp.Err)
	}
	return resp.Result, nil
}

// Calls returns a copy of all recorded invocations in order.
func (r *Registry) Calls() []CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRecord, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsTo returns recorded invocations of the named tool only.
func (r *Registry) CallsTo(name string) []CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallRecord
	for _, c := range r.calls {
		if c.Tool == name {
			out = append(out, c)
		}
	}
	return out
}
