// Package expect implements the assertion engine over a single model
// response: content assertions, custom graders, LLM-judge scoring, and
// tool-call sub-assertions. Every assertion appends exactly one grader
// result to the trial's recorder and returns a typed *grade.AssertionError
// when it fails, so the trial engine can convert the failure into a trial
// status while keeping the full result list for reporting.
package expect

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tgrover/llmexpect/pkg/grade"
	"github.com/tgrover/llmexpect/pkg/judge"
	"github.com/tgrover/llmexpect/pkg/provider"
)

// Grader is a user-supplied grading function invoked by Expect.To.
type Grader func(*provider.Response) (grade.Result, error)

// Expect wraps one model response for assertions. Not returns a new view
// over the same response and recorder with polarity flipped; the flip is
// involutive, so e.Not().Not() asserts with the original polarity.
type Expect struct {
	ctx     context.Context
	resp    *provider.Response
	rec     *grade.Recorder
	judge   *judge.Client
	negated bool
}

// New binds an assertion engine to a response. The recorder is owned by
// the enclosing trial; the judge client may be nil when no judge is
// configured, in which case ToPassJudge fails fast with a ConfigError.
func New(ctx context.Context, resp *provider.Response, rec *grade.Recorder, j *judge.Client) *Expect {
	return &Expect{ctx: ctx, resp: resp, rec: rec, judge: j}
}

// Not returns a negated view sharing the same response and result list.
func (e *Expect) Not() *Expect {
	clone := *e
	clone.negated = !e.negated
	return &clone
}

// Response returns the wrapped model response.
func (e *Expect) Response() *provider.Response {
	return e.resp
}

// ToolCalls returns the tool-call assertion engine over the response's
// tool invocations, inheriting the current negation polarity.
func (e *Expect) ToolCalls() *ToolCallsExpect {
	return &ToolCallsExpect{calls: e.resp.ToolCalls, rec: e.rec, negated: e.negated}
}

// record pushes the result unconditionally (failure reasons must stay
// visible to reporting even when the run aborts early) and returns the
// typed assertion error on failure.
func (e *Expect) record(assertion string, res grade.Result) error {
	e.rec.Record(res)
	if !res.Pass {
		return &grade.AssertionError{Assertion: assertion, Result: res}
	}
	return nil
}

// ContainOption configures ToContain.
type ContainOption func(*containOpts)

type containOpts struct {
	caseSensitive bool
}

// CaseSensitive makes ToContain compare without case folding.
func CaseSensitive() ContainOption {
	return func(o *containOpts) { o.caseSensitive = true }
}

// ToContain asserts that the response content contains the given
// substring. The search is case-insensitive unless CaseSensitive is given.
func (e *Expect) ToContain(text string, opts ...ContainOption) error {
	var o containOpts
	for _, opt := range opts {
		opt(&o)
	}

	content := e.resp.Content
	needle := text
	if !o.caseSensitive {
		content = strings.ToLower(content)
		needle = strings.ToLower(needle)
	}
	found := strings.Contains(content, needle)

	res := grade.Result{Pass: found != e.negated}
	switch {
	case found && !e.negated:
		res.Reason = fmt.Sprintf("content contains %q", text)
	case !found && !e.negated:
		res.Reason = fmt.Sprintf("content does not contain %q\n  content: %s", text, truncate(e.resp.Content, 200))
	case !found:
		res.Reason = fmt.Sprintf("content does not contain %q", text)
	default:
		res.Reason = fmt.Sprintf("expected content not to contain %q, but it does", text)
	}
	return e.record("toContain", res)
}

// ToMatch asserts that the response content matches the given regex
// pattern, compiled with default flags.
func (e *Expect) ToMatch(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	return e.ToMatchRegexp(re)
}

// ToMatchRegexp asserts that the response content matches the given
// compiled regular expression.
func (e *Expect) ToMatchRegexp(re *regexp.Regexp) error {
	matched := re.MatchString(e.resp.Content)

	res := grade.Result{Pass: matched != e.negated}
	switch {
	case matched && !e.negated:
		res.Reason = fmt.Sprintf("content matches pattern %q", re.String())
	case !matched && !e.negated:
		res.Reason = fmt.Sprintf("content does not match pattern %q\n  content: %s", re.String(), truncate(e.resp.Content, 200))
	case !matched:
		res.Reason = fmt.Sprintf("content does not match pattern %q", re.String())
	default:
		res.Reason = fmt.Sprintf("expected content not to match pattern %q, but it does", re.String())
	}
	return e.record("toMatch", res)
}

// NoMax disables the upper bound for ToAskQuestions.
const NoMax = -1

// ToAskQuestions asserts that the response asks between min and max
// questions, counting literal '?' characters in the content. Pass NoMax to
// leave the range unbounded above. The glyph count is a deliberate
// heuristic: rhetorical or quoted question marks are counted too.
func (e *Expect) ToAskQuestions(min, max int) error {
	count := strings.Count(e.resp.Content, "?")
	within := count >= min && (max < 0 || count <= max)

	rangeDesc := fmt.Sprintf("[%d, %d]", min, max)
	if max < 0 {
		rangeDesc = fmt.Sprintf("[%d, unbounded]", min)
	}

	res := grade.Result{Pass: within != e.negated}
	switch {
	case within && !e.negated:
		res.Reason = fmt.Sprintf("content asks %d question(s), within %s", count, rangeDesc)
	case !within && !e.negated:
		res.Reason = fmt.Sprintf("content asks %d question(s), outside %s", count, rangeDesc)
	case !within:
		res.Reason = fmt.Sprintf("content asks %d question(s), outside %s", count, rangeDesc)
	default:
		res.Reason = fmt.Sprintf("expected question count outside %s, but content asks %d", rangeDesc, count)
	}
	return e.record("toAskQuestions", res)
}

// To invokes a custom grader against the response. Under negation the
// grader's verdict is flipped; the reason is marked only when the flip
// turns a passing grade into a failure (a grader that already failed
// passes under negation with its original reason intact).
func (e *Expect) To(fn Grader) error {
	res, err := fn(e.resp)
	if err != nil {
		return fmt.Errorf("grader: %w", err)
	}
	if res.Reason == "" {
		res.Reason = "grader returned no reason"
	}
	if e.negated {
		if res.Pass {
			res.Reason = "expected grader not to pass: " + res.Reason
		}
		res.Pass = !res.Pass
	}
	return e.record("to", res)
}

// JudgeOption configures ToPassJudge.
type JudgeOption func(*judgeOpts)

type judgeOpts struct {
	threshold float64
	client    *judge.Client
}

// WithThreshold overrides the judge pass threshold (default 0.5).
func WithThreshold(t float64) JudgeOption {
	return func(o *judgeOpts) { o.threshold = t }
}

// WithJudge overrides the judge provider for this single assertion.
func WithJudge(c *judge.Client) JudgeOption {
	return func(o *judgeOpts) { o.client = c }
}

// ToPassJudge asks the configured judge model to score the response
// content against natural-language criteria. The gating decision is
// score >= threshold; the judge's self-reported pass field is ignored.
// A judge reply that cannot be parsed degrades to a failing assertion. A
// missing judge configuration is a *grade.ConfigError, not a test failure.
func (e *Expect) ToPassJudge(criteria string, opts ...JudgeOption) error {
	o := judgeOpts{threshold: 0.5, client: e.judge}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil || o.client.Provider == nil {
		return grade.Configf("toPassJudge: no judge provider configured")
	}

	judgment, usage, err := o.client.Evaluate(e.ctx, criteria, e.resp.Content)
	if err != nil {
		return err
	}

	met := judgment.Score >= o.threshold
	res := grade.Result{
		Pass:    met != e.negated,
		Usage:   &usage,
		CostUSD: provider.EstimateCost(o.client.Model, usage),
	}.Scored(judgment.Score)

	switch {
	case met && !e.negated:
		res.Reason = fmt.Sprintf("judge score %.2f meets threshold %.2f: %s", judgment.Score, o.threshold, judgment.Reason)
	case !met && !e.negated:
		res.Reason = fmt.Sprintf("judge score %.2f below threshold %.2f: %s", judgment.Score, o.threshold, judgment.Reason)
	case !met:
		res.Reason = fmt.Sprintf("judge score %.2f below threshold %.2f: %s", judgment.Score, o.threshold, judgment.Reason)
	default:
		res.Reason = fmt.Sprintf("expected judge score below threshold %.2f, got %.2f: %s", o.threshold, judgment.Score, judgment.Reason)
	}
	return e.record("toPassJudge", res)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
