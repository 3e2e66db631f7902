package expect

import (
	"fmt"

	"github.com/tgrover/llmexpect/pkg/grade"
	"github.com/tgrover/llmexpect/pkg/match"
	"github.com/tgrover/llmexpect/pkg/provider"
)

// ToolCallsExpect asserts over the ordered list of tool invocations a
// model made during a turn. It follows the same push-then-fail discipline
// as Expect, with XOR negation on every boolean assertion.
type ToolCallsExpect struct {
	calls   []provider.ToolCall
	rec     *grade.Recorder
	negated bool
}

// Not returns a negated view over the same call list.
func (tc *ToolCallsExpect) Not() *ToolCallsExpect {
	return &ToolCallsExpect{calls: tc.calls, rec: tc.rec, negated: !tc.negated}
}

// Calls returns all recorded tool calls in invocation order. It is a pure
// accessor and does not append a grader result.
func (tc *ToolCallsExpect) Calls() []provider.ToolCall {
	out := make([]provider.ToolCall, len(tc.calls))
	copy(out, tc.calls)
	return out
}

// CallsTo returns the calls made to the named tool, preserving order.
func (tc *ToolCallsExpect) CallsTo(name string) []provider.ToolCall {
	var out []provider.ToolCall
	for _, c := range tc.calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func (tc *ToolCallsExpect) record(assertion string, res grade.Result) error {
	tc.rec.Record(res)
	if !res.Pass {
		return &grade.AssertionError{Assertion: assertion, Result: res}
	}
	return nil
}

// ToHaveBeenCalled asserts that at least one tool call was made.
func (tc *ToolCallsExpect) ToHaveBeenCalled() error {
	called := len(tc.calls) > 0

	res := grade.Result{Pass: called != tc.negated}
	switch {
	case called && !tc.negated:
		res.Reason = fmt.Sprintf("%d tool call(s) were made", len(tc.calls))
	case !called && !tc.negated:
		res.Reason = "no tool calls were made"
	case !called:
		res.Reason = "no tool calls were made"
	default:
		res.Reason = fmt.Sprintf("expected no tool calls, but %d were made", len(tc.calls))
	}
	return tc.record("toolCalls.toHaveBeenCalled", res)
}

// ToHaveCallCount asserts the exact total number of tool calls.
func (tc *ToolCallsExpect) ToHaveCallCount(count int) error {
	got := len(tc.calls)
	exact := got == count

	res := grade.Result{Pass: exact != tc.negated}
	switch {
	case exact && !tc.negated:
		res.Reason = fmt.Sprintf("%d tool call(s) were made", got)
	case !tc.negated:
		res.Reason = fmt.Sprintf("expected %d tool call(s), got %d", count, got)
	case !exact:
		res.Reason = fmt.Sprintf("%d tool call(s) were made, not %d", got, count)
	default:
		res.Reason = fmt.Sprintf("expected tool call count other than %d, got exactly %d", count, got)
	}
	return tc.record("toolCalls.toHaveCallCount", res)
}

// ToHaveCallCountFor asserts the exact number of calls to one named tool.
func (tc *ToolCallsExpect) ToHaveCallCountFor(name string, count int) error {
	got := len(tc.CallsTo(name))
	exact := got == count

	res := grade.Result{Pass: exact != tc.negated}
	switch {
	case exact && !tc.negated:
		res.Reason = fmt.Sprintf("tool %q was called %d time(s)", name, got)
	case !tc.negated:
		res.Reason = fmt.Sprintf("expected tool %q to be called %d time(s), got %d", name, count, got)
	case !exact:
		res.Reason = fmt.Sprintf("tool %q was called %d time(s), not %d", name, got, count)
	default:
		res.Reason = fmt.Sprintf("expected tool %q call count other than %d, got exactly %d", name, count, got)
	}
	return tc.record("toolCalls.toHaveCallCount", res)
}

// ToInclude asserts that at least one call was made to the named tool.
func (tc *ToolCallsExpect) ToInclude(name string) error {
	found := len(tc.CallsTo(name)) > 0

	res := grade.Result{Pass: found != tc.negated}
	switch {
	case found && !tc.negated:
		res.Reason = fmt.Sprintf("tool %q was called", name)
	case !found && !tc.negated:
		res.Reason = fmt.Sprintf("tool %q was not called (calls: %s)", name, tc.callNames())
	case !found:
		res.Reason = fmt.Sprintf("tool %q was not called", name)
	default:
		res.Reason = fmt.Sprintf("expected tool %q not to be called, but it was", name)
	}
	return tc.record("toolCalls.toInclude", res)
}

// ToHaveArgs asserts that the first call to the named tool was made with
// arguments structurally matching expected. Nested matchers inside
// expected are honored, and extra argument keys are ignored. A tool that
// was never called is a distinct failure from a call with wrong arguments.
func (tc *ToolCallsExpect) ToHaveArgs(name string, expected map[string]any) error {
	call, found := tc.firstCall(name)
	if !found {
		res := grade.Result{
			Pass:   tc.negated,
			Reason: fmt.Sprintf("tool %q was never called", name),
		}
		return tc.record("toolCalls.toHaveArgs", res)
	}

	matched := match.Match(expected, call.Arguments)
	res := grade.Result{Pass: matched != tc.negated}
	switch {
	case matched && !tc.negated:
		res.Reason = fmt.Sprintf("tool %q arguments match %s", name, match.Describe(expected))
	case !matched && !tc.negated:
		res.Reason = fmt.Sprintf("tool %q arguments do not match: expected %s, got %v", name, match.Describe(expected), call.Arguments)
	case !matched:
		res.Reason = fmt.Sprintf("tool %q arguments do not match %s", name, match.Describe(expected))
	default:
		res.Reason = fmt.Sprintf("expected tool %q arguments not to match %s, but they do", name, match.Describe(expected))
	}
	return tc.record("toolCalls.toHaveArgs", res)
}

// ToHaveResult asserts that the first call to the named tool was executed
// and produced a result structurally matching expected. Three failure
// modes are distinguished by reason: tool never called, tool called but
// never executed, and result mismatch.
func (tc *ToolCallsExpect) ToHaveResult(name string, expected any) error {
	call, found := tc.firstCall(name)
	if !found {
		res := grade.Result{
			Pass:   tc.negated,
			Reason: fmt.Sprintf("tool %q was never called", name),
		}
		return tc.record("toolCalls.toHaveResult", res)
	}
	if !call.Executed {
		res := grade.Result{
			Pass:   tc.negated,
			Reason: fmt.Sprintf("tool %q was called but not executed", name),
		}
		return tc.record("toolCalls.toHaveResult", res)
	}

	matched := match.Match(expected, call.Result)
	res := grade.Result{Pass: matched != tc.negated}
	switch {
	case matched && !tc.negated:
		res.Reason = fmt.Sprintf("tool %q result matches %s", name, match.Describe(expected))
	case !matched && !tc.negated:
		res.Reason = fmt.Sprintf("tool %q result does not match: expected %s, got %v", name, match.Describe(expected), call.Result)
	case !matched:
		res.Reason = fmt.Sprintf("tool %q result does not match %s", name, match.Describe(expected))
	default:
		res.Reason = fmt.Sprintf("expected tool %q result not to match %s, but it does", name, match.Describe(expected))
	}
	return tc.record("toolCalls.toHaveResult", res)
}

func (tc *ToolCallsExpect) firstCall(name string) (provider.ToolCall, bool) {
	for _, c := range tc.calls {
		if c.Name == name {
			return c, true
		}
	}
	return provider.ToolCall{}, false
}

func (tc *ToolCallsExpect) callNames() string {
	if len(tc.calls) == 0 {
		return "none"
	}
	names := ""
	for i, c := range tc.calls {
		if i > 0 {
			names += ", "
		}
		names += c.Name
	}
	return names
}
