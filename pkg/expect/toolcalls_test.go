package expect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tgrover/llmexpect/pkg/grade"
	"github.com/tgrover/llmexpect/pkg/match"
	"github.com/tgrover/llmexpect/pkg/provider"
)

func newToolCallsExpect(calls ...provider.ToolCall) (*ToolCallsExpect, *grade.Recorder) {
	rec := grade.NewRecorder()
	e := New(context.Background(), &provider.Response{ToolCalls: calls}, rec, nil)
	return e.ToolCalls(), rec
}

func toolAssertionErr(t *testing.T, err error) *grade.AssertionError {
	t.Helper()
	var ae *grade.AssertionError
	if !errors.As(err, &ae) {
		t.Fatalf("error is %T (%v), want *grade.AssertionError", err, err)
	}
	return ae
}

func TestToHaveBeenCalled(t *testing.T) {
	tc, _ := newToolCallsExpect(provider.ToolCall{Name: "search"})
	if err := tc.ToHaveBeenCalled(); err != nil {
		t.Errorf("ToHaveBeenCalled failed with one call: %v", err)
	}

	empty, _ := newToolCallsExpect()
	err := empty.ToHaveBeenCalled()
	ae := toolAssertionErr(t, err)
	if ae.Assertion != "toolCalls.toHaveBeenCalled" {
		t.Errorf("Assertion = %q", ae.Assertion)
	}
	if err := empty.Not().ToHaveBeenCalled(); err != nil {
		t.Errorf("negated ToHaveBeenCalled failed with zero calls: %v", err)
	}
}

func TestToHaveCallCount(t *testing.T) {
	tc, _ := newToolCallsExpect(
		provider.ToolCall{Name: "search"},
		provider.ToolCall{Name: "search"},
		provider.ToolCall{Name: "write"},
	)

	if err := tc.ToHaveCallCount(3); err != nil {
		t.Errorf("ToHaveCallCount(3) failed: %v", err)
	}
	err := tc.ToHaveCallCount(2)
	ae := toolAssertionErr(t, err)
	if !strings.Contains(ae.Result.Reason, "expected 2 tool call(s), got 3") {
		t.Errorf("Reason = %q", ae.Result.Reason)
	}
	if err := tc.Not().ToHaveCallCount(2); err != nil {
		t.Errorf("negated ToHaveCallCount(2) failed: %v", err)
	}
}

func TestToHaveCallCountFor(t *testing.T) {
	tc, _ := newToolCallsExpect(
		provider.ToolCall{Name: "search"},
		provider.ToolCall{Name: "search"},
		provider.ToolCall{Name: "write"},
	)

	if err := tc.ToHaveCallCountFor("search", 2); err != nil {
		t.Errorf("ToHaveCallCountFor(search, 2) failed: %v", err)
	}
	if err := tc.ToHaveCallCountFor("write", 1); err != nil {
		t.Errorf("ToHaveCallCountFor(write, 1) failed: %v", err)
	}
	if err := tc.ToHaveCallCountFor("delete", 0); err != nil {
		t.Errorf("ToHaveCallCountFor(delete, 0) failed: %v", err)
	}
	if err := tc.ToHaveCallCountFor("search", 1); err == nil {
		t.Error("ToHaveCallCountFor(search, 1) should fail for 2 calls")
	}
}

func TestToInclude(t *testing.T) {
	tc, _ := newToolCallsExpect(
		provider.ToolCall{Name: "read_file"},
		provider.ToolCall{Name: "write_file"},
	)

	if err := tc.ToInclude("read_file"); err != nil {
		t.Errorf("ToInclude failed: %v", err)
	}

	err := tc.ToInclude("delete_file")
	ae := toolAssertionErr(t, err)
	if !strings.Contains(ae.Result.Reason, "read_file, write_file") {
		t.Errorf("Reason = %q, want it to list actual calls", ae.Result.Reason)
	}

	if err := tc.Not().ToInclude("delete_file"); err != nil {
		t.Errorf("negated ToInclude failed: %v", err)
	}
	if err := tc.Not().ToInclude("read_file"); err == nil {
		t.Error("negated ToInclude should fail for a called tool")
	}
}

func TestToHaveArgs(t *testing.T) {
	tc, _ := newToolCallsExpect(provider.ToolCall{
		Name:      "read_file",
		Arguments: map[string]any{"path": "/app/handler.go", "mode": "text"},
	})

	// Extra argument keys are ignored.
	if err := tc.ToHaveArgs("read_file", map[string]any{"path": "/app/handler.go"}); err != nil {
		t.Errorf("partial ToHaveArgs failed: %v", err)
	}

	err := tc.ToHaveArgs("read_file", map[string]any{"path": "/other.go"})
	ae := toolAssertionErr(t, err)
	if !strings.Contains(ae.Result.Reason, "arguments do not match") {
		t.Errorf("Reason = %q", ae.Result.Reason)
	}
}

func TestToHaveArgs_NeverCalled(t *testing.T) {
	tc, rec := newToolCallsExpect(provider.ToolCall{Name: "other_tool"})

	err := tc.ToHaveArgs("read_file", map[string]any{"path": "/x"})
	ae := toolAssertionErr(t, err)
	if ae.Result.Reason != `tool "read_file" was never called` {
		t.Errorf("Reason = %q, want never-called reason", ae.Result.Reason)
	}
	if len(rec.Results()) != 1 {
		t.Errorf("recorded %d results, want 1", len(rec.Results()))
	}

	// Under negation, never-called satisfies the assertion.
	if err := tc.Not().ToHaveArgs("read_file", map[string]any{"path": "/x"}); err != nil {
		t.Errorf("negated ToHaveArgs for uncalled tool failed: %v", err)
	}
}

func TestToHaveArgs_WithMatchers(t *testing.T) {
	tc, _ := newToolCallsExpect(provider.ToolCall{
		Name: "write_file",
		Arguments: map[string]any{
			"path":    "/app/handler.go",
			"content": "package app\n\nfunc CreateUser() {}",
		},
	})

	err := tc.ToHaveArgs("write_file", map[string]any{
		"path":    match.StringMatching(`\.go$`),
		"content": match.StringMatching(`func CreateUser`),
	})
	if err != nil {
		t.Errorf("ToHaveArgs with matchers failed: %v", err)
	}
}

func TestToHaveResult(t *testing.T) {
	tc, _ := newToolCallsExpect(provider.ToolCall{
		Name:     "search",
		Executed: true,
		Result:   map[string]any{"hits": 3, "source": "index"},
	})

	if err := tc.ToHaveResult("search", map[string]any{"hits": 3}); err != nil {
		t.Errorf("ToHaveResult failed: %v", err)
	}

	err := tc.ToHaveResult("search", map[string]any{"hits": 99})
	ae := toolAssertionErr(t, err)
	if !strings.Contains(ae.Result.Reason, "result does not match") {
		t.Errorf("Reason = %q", ae.Result.Reason)
	}
}

func TestToHaveResult_DistinguishesFailureModes(t *testing.T) {
	tc, _ := newToolCallsExpect(
		provider.ToolCall{Name: "pending_tool", Executed: false},
		provider.ToolCall{Name: "done_tool", Executed: true, Result: "actual"},
	)

	err := tc.ToHaveResult("absent_tool", "x")
	ae := toolAssertionErr(t, err)
	if ae.Result.Reason != `tool "absent_tool" was never called` {
		t.Errorf("never-called Reason = %q", ae.Result.Reason)
	}

	err = tc.ToHaveResult("pending_tool", "x")
	ae = toolAssertionErr(t, err)
	if ae.Result.Reason != `tool "pending_tool" was called but not executed` {
		t.Errorf("not-executed Reason = %q", ae.Result.Reason)
	}

	err = tc.ToHaveResult("done_tool", "expected")
	ae = toolAssertionErr(t, err)
	if !strings.Contains(ae.Result.Reason, `result does not match`) {
		t.Errorf("mismatch Reason = %q", ae.Result.Reason)
	}
}

func TestToHaveResult_ExecutedNilResult(t *testing.T) {
	// A tool that ran and returned nil is distinct from one that never ran.
	tc, _ := newToolCallsExpect(provider.ToolCall{Name: "cleanup", Executed: true, Result: nil})

	if err := tc.ToHaveResult("cleanup", nil); err != nil {
		t.Errorf("ToHaveResult(nil) failed for executed nil result: %v", err)
	}
}

func TestToolCalls_PureAccessors(t *testing.T) {
	tc, rec := newToolCallsExpect(
		provider.ToolCall{Name: "a"},
		provider.ToolCall{Name: "b"},
		provider.ToolCall{Name: "a"},
	)

	if got := tc.Calls(); len(got) != 3 {
		t.Errorf("len(Calls()) = %d, want 3", len(got))
	}
	if got := tc.CallsTo("a"); len(got) != 2 {
		t.Errorf("len(CallsTo(a)) = %d, want 2", len(got))
	}
	if got := tc.CallsTo("z"); len(got) != 0 {
		t.Errorf("len(CallsTo(z)) = %d, want 0", len(got))
	}

	// Accessors never append grader results.
	if len(rec.Results()) != 0 {
		t.Errorf("accessors recorded %d results, want 0", len(rec.Results()))
	}
}

func TestToolCalls_InheritsNegation(t *testing.T) {
	rec := grade.NewRecorder()
	e := New(context.Background(), &provider.Response{}, rec, nil)

	// Expect.Not().ToolCalls() carries the flipped polarity.
	if err := e.Not().ToolCalls().ToHaveBeenCalled(); err != nil {
		t.Errorf("inherited negation failed: %v", err)
	}
}
