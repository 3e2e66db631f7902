// Package judge implements LLM-as-judge scoring plus deterministic grader
// helpers (exact, regex, JSON Schema) compatible with the assertion
// engine's custom-grader hook.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tgrover/llmexpect/pkg/provider"
)

const systemPrompt = `You are an evaluator grading an AI assistant's response against criteria.

You MUST respond with ONLY a JSON object in this exact format, no other text:
{"pass": <true/false>, "score": <0.0-1.0>, "reason": "<your explanation>"}

Score 0.0 means the response completely fails the criteria, 1.0 means it
fully satisfies them. Set "pass" to your overall verdict.`

// Judgment is the judge model's parsed verdict. The score is the single
// source of truth for gating; the self-reported Pass field is
// informational only.
type Judgment struct {
	Pass   bool    `json:"pass"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Client issues judge calls against a provider/model pair.
type Client struct {
	Provider provider.Provider
	Model    string
}

// Evaluate sends the candidate content and criteria to the judge model and
// returns its judgment along with the call's token usage. A judge reply
// that cannot be parsed degrades to a failing judgment with score 0; only
// transport-level failures return an error.
func (c *Client) Evaluate(ctx context.Context, criteria, content string) (Judgment, provider.Usage, error) {
	user := fmt.Sprintf("## Criteria\n%s\n\n## Response to evaluate\n%s", criteria, content)

	resp, err := c.Provider.Chat(ctx, &provider.Request{
		Model:     c.Model,
		System:    systemPrompt,
		Messages:  []provider.Message{provider.User(user)},
		MaxTokens: 1024,
	})
	if err != nil {
		return Judgment{}, provider.Usage{}, fmt.Errorf("judge call failed: %w", err)
	}

	j, ok := parseJudgment(resp.Content)
	if !ok {
		j = Judgment{
			Pass:   false,
			Score:  0,
			Reason: "Failed to parse judge response: " + truncate(strings.TrimSpace(resp.Content), 200),
		}
	}
	return j, resp.Usage, nil
}

// parseJudgment extracts the first balanced {...} substring from the
// judge's free-text reply and parses it as JSON.
func parseJudgment(content string) (Judgment, bool) {
	raw, ok := extractJSONObject(content)
	if !ok {
		return Judgment{}, false
	}
	var j Judgment
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return Judgment{}, false
	}
	return j, true
}

// extractJSONObject returns the first balanced-brace substring of s.
// Braces inside JSON strings are accounted for.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
