package eval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tgrover/llmexpect/pkg/expect"
	"github.com/tgrover/llmexpect/pkg/grade"
	"github.com/tgrover/llmexpect/pkg/judge"
	"github.com/tgrover/llmexpect/pkg/provider"
)

// maxToolIterations bounds tool-call round-trips within one Chat call to
// prevent infinite loops.
const maxToolIterations = 20

// Ctx is the isolated execution context handed to a task body for one
// trial. It carries the conversation-aware AI handle, the trial's grader
// recorder, and the resolved judge client.
type Ctx struct {
	AI *AI

	ctx   context.Context
	rec   *grade.Recorder
	judge *judge.Client
}

// NewCtx builds the per-trial context for a task. AI configuration is
// resolved task-level first, then suite-level; neither present is a
// configuration error. The judge falls back to the task's own AI
// configuration when not separately specified (self-grading). Suite and
// task tool declarations are merged, suite tools first.
func NewCtx(ctx context.Context, s *Suite, t *Task, providers Providers, rec *grade.Recorder) (*Ctx, error) {
	aiCfg := t.Options.AI
	if aiCfg == nil {
		aiCfg = s.Options.AI
	}
	if aiCfg == nil {
		return nil, grade.Configf("task %q: no AI configuration at task or suite level", t.Name)
	}
	aiProvider, ok := providers[aiCfg.Provider]
	if !ok {
		return nil, grade.Configf("task %q: unknown provider %q", t.Name, aiCfg.Provider)
	}

	judgeCfg := t.Options.Judge
	if judgeCfg == nil {
		judgeCfg = s.Options.Judge
	}
	if judgeCfg == nil {
		judgeCfg = aiCfg
	}
	judgeProvider, ok := providers[judgeCfg.Provider]
	if !ok {
		return nil, grade.Configf("task %q: unknown judge provider %q", t.Name, judgeCfg.Provider)
	}

	tools := make([]Tool, 0, len(s.Options.Tools)+len(t.Options.Tools))
	tools = append(tools, s.Options.Tools...)
	tools = append(tools, t.Options.Tools...)

	ai := &AI{
		ctx:      ctx,
		provider: aiProvider,
		model:    aiCfg.Model,
		system:   s.Options.System,
		tools:    tools,
	}
	ai.wireTools = make([]provider.Tool, len(tools))
	ai.executors = make(map[string]func(map[string]any) (any, error), len(tools))
	for i, tool := range tools {
		ai.wireTools[i] = tool.wire()
		if tool.Execute != nil {
			ai.executors[tool.Name] = tool.Execute
		}
	}

	return &Ctx{
		AI:    ai,
		ctx:   ctx,
		rec:   rec,
		judge: &judge.Client{Provider: judgeProvider, Model: judgeCfg.Model},
	}, nil
}

// Expect wraps a model response for assertions bound to this trial's
// recorder and judge.
func (c *Ctx) Expect(resp *provider.Response) *expect.Expect {
	return expect.New(c.ctx, resp, c.rec, c.judge)
}

// Context returns the trial's context, carrying the per-task deadline.
func (c *Ctx) Context() context.Context {
	return c.ctx
}

// Recorder returns the trial's grader-result recorder.
func (c *Ctx) Recorder() *grade.Recorder {
	return c.rec
}

// AI sends messages to the configured provider while threading the task's
// private conversation history: every call appends the new user turns,
// sends the entire accumulated history plus system prompt, then appends
// the assistant reply, so a later call automatically includes prior turns.
// History is task-scoped and never shared across tasks or trials.
type AI struct {
	ctx       context.Context
	provider  provider.Provider
	model     string
	system    string
	tools     []Tool
	wireTools []provider.Tool
	executors map[string]func(map[string]any) (any, error)

	history []provider.Message
	usage   provider.Usage
	cost    float64
}

// Prompt sends a single user message. It is sugar for Chat with one
// user-role message.
func (a *AI) Prompt(text string) (*provider.Response, error) {
	return a.Chat(provider.User(text))
}

// Chat appends the given messages to the conversation and drives the
// provider until the model stops requesting executable tools. Tool calls
// whose tools declare an Execute func are run, their results recorded on
// the call and fed back as tool messages; calls without executors are
// recorded unexecuted. The returned response carries the final assistant
// content, every tool call observed during the exchange in order, and the
// summed usage of all provider round-trips in this call.
func (a *AI) Chat(msgs ...provider.Message) (*provider.Response, error) {
	a.history = append(a.history, msgs...)

	var allCalls []provider.ToolCall
	var callUsage provider.Usage

	for i := 0; i < maxToolIterations; i++ {
		resp, err := a.provider.Chat(a.ctx, &provider.Request{
			Model:    a.model,
			System:   a.system,
			Messages: a.history,
			Tools:    a.wireTools,
		})
		if err != nil {
			return nil, err
		}

		callUsage.Add(resp.Usage)
		a.usage.Add(resp.Usage)
		a.cost += provider.EstimateCost(a.model, resp.Usage)

		if len(resp.ToolCalls) == 0 {
			a.history = append(a.history, provider.Message{Role: "assistant", Content: resp.Content})
			return &provider.Response{
				Content:    resp.Content,
				ToolCalls:  allCalls,
				Usage:      callUsage,
				StopReason: resp.StopReason,
			}, nil
		}

		a.history = append(a.history, provider.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		executedAny := false
		for _, call := range resp.ToolCalls {
			recorded := call
			if execute, ok := a.executors[call.Name]; ok {
				result, execErr := execute(call.Arguments)
				recorded.Executed = true
				recorded.Result = result
				executedAny = true

				content := stringifyToolResult(result)
				if execErr != nil {
					recorded.Result = nil
					content = fmt.Sprintf("Error: %v", execErr)
				}
				a.history = append(a.history, provider.Message{
					Role:       "tool",
					Content:    content,
					ToolCallID: call.ID,
				})
			}
			allCalls = append(allCalls, recorded)
		}

		if !executedAny {
			return &provider.Response{
				Content:    resp.Content,
				ToolCalls:  allCalls,
				Usage:      callUsage,
				StopReason: resp.StopReason,
			}, nil
		}
	}

	return nil, fmt.Errorf("tool loop exceeded %d iterations", maxToolIterations)
}

// History returns a copy of the accumulated conversation.
func (a *AI) History() []provider.Message {
	out := make([]provider.Message, len(a.history))
	copy(out, a.history)
	return out
}

// Usage returns the summed token usage of all provider calls made through
// this context.
func (a *AI) Usage() provider.Usage {
	return a.usage
}

// CostUSD returns the estimated spend of all provider calls made through
// this context.
func (a *AI) CostUSD() float64 {
	return a.cost
}

func stringifyToolResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
