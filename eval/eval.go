package eval

import (
	"time"

	"github.com/tgrover/llmexpect/pkg/provider"
)

// AIConfig selects a provider (by registry name) and model.
type AIConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Param describes one tool parameter. Type is a JSON Schema primitive:
// string, number, boolean, object, or array.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Tool declares a tool made available to the model. Execute, when set, is
// run by the eval context for every call the model makes to this tool; its
// return value is recorded on the tool call and fed back to the model as a
// tool message. Tools without Execute are passed to the provider but their
// calls are left unexecuted.
type Tool struct {
	Name        string
	Description string
	Parameters  []Param
	Execute     func(args map[string]any) (any, error)
}

// wire converts the declaration into provider wire form, building the
// JSON Schema object from the parameter list.
func (t Tool) wire() provider.Tool {
	properties := make(map[string]any, len(t.Parameters))
	var required []string
	for _, p := range t.Parameters {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return provider.Tool{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  schema,
	}
}

// SuiteOptions holds suite-level defaults shared by every task.
type SuiteOptions struct {
	AI     *AIConfig
	Judge  *AIConfig
	System string
	Tools  []Tool
}

// TaskOptions overrides suite-level configuration for one task.
type TaskOptions struct {
	AI      *AIConfig
	Judge   *AIConfig
	Tools   []Tool
	Timeout time.Duration
}

// TaskFunc is a task body. It receives the per-trial eval context and
// returns nil on completion; assertion failures propagate as
// *grade.AssertionError via the assertion methods' return values.
type TaskFunc func(tc *Ctx) error

// Task is a named unit of evaluation logic run one or more times.
type Task struct {
	Name    string
	Fn      TaskFunc
	Options TaskOptions
}

// Suite is a named group of tasks sharing configuration. Suites are built
// with explicit builder calls rather than a global registry, so nothing
// leaks across files.
type Suite struct {
	Name    string
	Options SuiteOptions
	Tasks   []Task
	File    string
}

// SuiteOption configures a Suite at construction.
type SuiteOption func(*Suite)

// WithAI sets the suite's default provider and model.
func WithAI(providerName, model string) SuiteOption {
	return func(s *Suite) { s.Options.AI = &AIConfig{Provider: providerName, Model: model} }
}

// WithJudge sets the suite's default judge provider and model.
func WithJudge(providerName, model string) SuiteOption {
	return func(s *Suite) { s.Options.Judge = &AIConfig{Provider: providerName, Model: model} }
}

// WithSystem sets the system prompt used for all tasks in the suite.
func WithSystem(system string) SuiteOption {
	return func(s *Suite) { s.Options.System = system }
}

// WithTools declares tools available to every task in the suite.
func WithTools(tools ...Tool) SuiteOption {
	return func(s *Suite) { s.Options.Tools = append(s.Options.Tools, tools...) }
}

// WithFile records the source file the suite was declared in.
func WithFile(file string) SuiteOption {
	return func(s *Suite) { s.File = file }
}

// NewSuite creates a Suite with the given options applied.
func NewSuite(name string, opts ...SuiteOption) *Suite {
	s := &Suite{Name: name}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TaskOption configures a single task.
type TaskOption func(*Task)

// TaskAI overrides the provider and model for one task.
func TaskAI(providerName, model string) TaskOption {
	return func(t *Task) { t.Options.AI = &AIConfig{Provider: providerName, Model: model} }
}

// TaskJudge overrides the judge for one task.
func TaskJudge(providerName, model string) TaskOption {
	return func(t *Task) { t.Options.Judge = &AIConfig{Provider: providerName, Model: model} }
}

// TaskTools declares additional tools for one task, merged after the
// suite's tools.
func TaskTools(tools ...Tool) TaskOption {
	return func(t *Task) { t.Options.Tools = append(t.Options.Tools, tools...) }
}

// TaskTimeout overrides the per-trial timeout for one task.
func TaskTimeout(d time.Duration) TaskOption {
	return func(t *Task) { t.Options.Timeout = d }
}

// Task appends a task to the suite and returns the suite for chaining.
func (s *Suite) Task(name string, fn TaskFunc, opts ...TaskOption) *Suite {
	t := Task{Name: name, Fn: fn}
	for _, opt := range opts {
		opt(&t)
	}
	s.Tasks = append(s.Tasks, t)
	return s
}

// Providers is the registry the execution engine resolves AIConfig
// provider names against.
type Providers map[string]provider.Provider
