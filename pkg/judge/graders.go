package judge

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/tgrover/llmexpect/pkg/grade"
	"github.com/tgrover/llmexpect/pkg/provider"
)

// Exact returns a grader that compares response content against an
// expected string. When normalizeWhitespace is true, leading/trailing
// whitespace is trimmed and internal runs collapse to single spaces.
func Exact(expected string, normalizeWhitespace bool) func(*provider.Response) (grade.Result, error) {
	return func(resp *provider.Response) (grade.Result, error) {
		got, want := resp.Content, expected
		if normalizeWhitespace {
			got = strings.Join(strings.Fields(got), " ")
			want = strings.Join(strings.Fields(want), " ")
		}
		if got == want {
			return grade.Result{Pass: true, Reason: "content matches expected"}.Scored(1), nil
		}
		return grade.Result{
			Pass:   false,
			Reason: fmt.Sprintf("content does not match expected: got %q, want %q", truncate(got, 100), truncate(want, 100)),
		}.Scored(0), nil
	}
}

// Regex returns a grader that matches response content against a regular
// expression pattern.
func Regex(pattern string) func(*provider.Response) (grade.Result, error) {
	return func(resp *provider.Response) (grade.Result, error) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return grade.Result{}, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		if re.MatchString(resp.Content) {
			return grade.Result{Pass: true, Reason: fmt.Sprintf("content matches pattern %q", pattern)}.Scored(1), nil
		}
		return grade.Result{Pass: false, Reason: fmt.Sprintf("content does not match pattern %q", pattern)}.Scored(0), nil
	}
}

// Schema returns a grader that validates response content as JSON
// conforming to the given JSON Schema document.
func Schema(schema string) func(*provider.Response) (grade.Result, error) {
	return func(resp *provider.Response) (grade.Result, error) {
		var schemaDoc any
		if err := json.Unmarshal([]byte(schema), &schemaDoc); err != nil {
			return grade.Result{}, fmt.Errorf("invalid JSON schema: %w", err)
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("schema.json", schemaDoc); err != nil {
			return grade.Result{}, fmt.Errorf("invalid JSON schema: %w", err)
		}
		sch, err := c.Compile("schema.json")
		if err != nil {
			return grade.Result{}, fmt.Errorf("compiling JSON schema: %w", err)
		}

		var v any
		if err := json.Unmarshal([]byte(resp.Content), &v); err != nil {
			return grade.Result{
				Pass:   false,
				Reason: fmt.Sprintf("content is not valid JSON: %v", err),
			}.Scored(0), nil
		}

		if err := sch.Validate(v); err != nil {
			return grade.Result{
				Pass:   false,
				Reason: fmt.Sprintf("content does not match schema: %v", err),
			}.Scored(0), nil
		}

		return grade.Result{Pass: true, Reason: "content matches JSON schema"}.Scored(1), nil
	}
}

// Weighted pairs a grader with its weight for composite scoring. A zero
// weight counts as 1.
type Weighted struct {
	Grader func(*provider.Response) (grade.Result, error)
	Weight float64
}

// Composite returns a grader that runs every sub-grader and combines their
// scores into a weighted average, passing when the composite score meets
// the threshold. A threshold of 0 defaults to 0.5. Graders without a score
// contribute 1 for pass and 0 for fail.
func Composite(threshold float64, graders ...Weighted) func(*provider.Response) (grade.Result, error) {
	if threshold == 0 {
		threshold = 0.5
	}
	return func(resp *provider.Response) (grade.Result, error) {
		var weightedSum, totalWeight float64
		var reasons []string

		for i, wg := range graders {
			w := wg.Weight
			if w == 0 {
				w = 1
			}
			res, err := wg.Grader(resp)
			if err != nil {
				return grade.Result{}, fmt.Errorf("composite grader %d: %w", i, err)
			}
			score := 0.0
			if res.Score != nil {
				score = *res.Score
			} else if res.Pass {
				score = 1
			}
			weightedSum += score * w
			totalWeight += w
			reasons = append(reasons, fmt.Sprintf("%s (score=%.2f)", res.Reason, score))
		}

		var composite float64
		if totalWeight > 0 {
			composite = weightedSum / totalWeight
		}
		return grade.Result{
			Pass:   composite >= threshold,
			Reason: strings.Join(reasons, "; "),
		}.Scored(composite), nil
	}
}
