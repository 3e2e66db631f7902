// Package grade defines the common result shape produced by every
// assertion, custom grader, and judge call, plus the typed errors that
// separate assertion failures from setup problems.
package grade

import (
	"fmt"

	"github.com/tgrover/llmexpect/pkg/provider"
)

// Result is the atomic grading outcome. Reason is always non-empty and
// human-readable. Score, Usage, and CostUSD are present only for graders
// that produce them (the LLM judge, custom graders).
type Result struct {
	Pass    bool            `json:"pass"`
	Reason  string          `json:"reason"`
	Score   *float64        `json:"score,omitempty"`
	Usage   *provider.Usage `json:"usage,omitempty"`
	CostUSD float64         `json:"costUsd,omitempty"`
}

// Scored attaches a score in [0,1] to a Result.
func (r Result) Scored(score float64) Result {
	r.Score = &score
	return r
}

// AssertionError is raised by every failing assertion. It carries the
// failing grader result and a tag naming which assertion produced it. The
// trial engine catches it and converts it into a failed trial; it is never
// a process-level crash.
type AssertionError struct {
	Assertion string
	Result    Result
}

func (e *AssertionError) Error() string { return e.Result.Reason }

// ConfigError signals a setup problem (missing AI or judge configuration,
// unknown provider name). It is raised before any provider call and is
// never downgraded to a grader failure.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// Recorder owns the ordered grader-result list for one trial. Results are
// appended, never mutated. A Recorder is owned by exactly one trial and is
// not shared across trials.
type Recorder struct {
	results []Result
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a result to the trial's list.
func (r *Recorder) Record(res Result) {
	r.results = append(r.results, res)
}

// Results returns a copy of all recorded results in order.
func (r *Recorder) Results() []Result {
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

// AnyFailed reports whether any recorded result has Pass=false.
func (r *Recorder) AnyFailed() bool {
	for _, res := range r.results {
		if !res.Pass {
			return true
		}
	}
	return false
}
