// Package match implements the structural-matcher sublanguage used by
// tool-call assertions: partial object matching, array subset matching,
// regex string matching, and a wildcard. Matchers compose recursively, so
// a matcher nested inside an expected structure is detected and invoked
// rather than compared by equality.
package match

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Matcher is a composable partial-match predicate usable anywhere inside an
// expected value. Match never panics; a type mismatch is simply false.
type Matcher interface {
	Match(actual any) bool
	Describe() string
}

// objectContaining matches a map that has at least the expected fields.
type objectContaining struct {
	fields map[string]any
}

// ObjectContaining returns a matcher requiring actual to be an object whose
// entries recursively match every expected field. Extra actual keys are
// ignored.
func ObjectContaining(fields map[string]any) Matcher {
	return objectContaining{fields: fields}
}

func (m objectContaining) Match(actual any) bool {
	obj, ok := asStringMap(actual)
	if !ok {
		return false
	}
	for k, want := range m.fields {
		got, present := obj[k]
		if !present || !Match(want, got) {
			return false
		}
	}
	return true
}

func (m objectContaining) Describe() string {
	keys := make([]string, 0, len(m.fields))
	for k := range m.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, Describe(m.fields[k]))
	}
	return "objectContaining({" + strings.Join(parts, ", ") + "})"
}

// arrayContaining matches a slice that contains each expected item
// somewhere (existential, not positional).
type arrayContaining struct {
	items []any
}

// ArrayContaining returns a matcher requiring actual to be an array in
// which every expected item has at least one matching element. Actual may
// be longer and ordered differently.
func ArrayContaining(items ...any) Matcher {
	return arrayContaining{items: items}
}

func (m arrayContaining) Match(actual any) bool {
	arr, ok := asSlice(actual)
	if !ok {
		return false
	}
	for _, want := range m.items {
		found := false
		for _, got := range arr {
			if Match(want, got) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m arrayContaining) Describe() string {
	parts := make([]string, len(m.items))
	for i, it := range m.items {
		parts[i] = Describe(it)
	}
	return "arrayContaining([" + strings.Join(parts, ", ") + "])"
}

// stringMatching matches a string against a regular expression.
type stringMatching struct {
	re      *regexp.Regexp
	pattern string
	bad     bool
}

// StringMatching returns a matcher requiring actual to be a string
// satisfying the pattern. An invalid pattern never matches.
func StringMatching(pattern string) Matcher {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return stringMatching{pattern: pattern, bad: true}
	}
	return stringMatching{re: re, pattern: pattern}
}

// StringMatchingRegexp returns a matcher backed by an already-compiled
// regular expression.
func StringMatchingRegexp(re *regexp.Regexp) Matcher {
	return stringMatching{re: re, pattern: re.String()}
}

func (m stringMatching) Match(actual any) bool {
	if m.bad {
		return false
	}
	s, ok := actual.(string)
	if !ok {
		return false
	}
	return m.re.MatchString(s)
}

func (m stringMatching) Describe() string {
	return fmt.Sprintf("stringMatching(%q)", m.pattern)
}

// anything matches every value, including nil.
type anything struct{}

// Anything returns a wildcard matcher used as a placeholder for values
// whose contents are irrelevant.
func Anything() Matcher {
	return anything{}
}

func (anything) Match(any) bool   { return true }
func (anything) Describe() string { return "anything()" }

// Match decides whether actual matches expected. Expected may embed
// Matchers at any depth. Plain maps use deep partial-object semantics
// (extra actual keys ignored), plain slices require the same length with
// element-wise recursive matching, and primitives use strict equality with
// numeric kinds normalized (JSON decoding yields float64).
func Match(expected, actual any) bool {
	if m, ok := expected.(Matcher); ok {
		return m.Match(actual)
	}

	if expected == nil {
		return actual == nil
	}

	if em, ok := asStringMap(expected); ok {
		am, ok := asStringMap(actual)
		if !ok {
			return false
		}
		for k, want := range em {
			got, present := am[k]
			if !present || !Match(want, got) {
				return false
			}
		}
		return true
	}

	if es, ok := asSlice(expected); ok {
		as, ok := asSlice(actual)
		if !ok || len(es) != len(as) {
			return false
		}
		for i := range es {
			if !Match(es[i], as[i]) {
				return false
			}
		}
		return true
	}

	if ef, ok := asFloat(expected); ok {
		af, ok := asFloat(actual)
		return ok && ef == af
	}

	return expected == actual
}

// Describe renders an expected value (possibly containing matchers) for
// use in failure reasons.
func Describe(expected any) string {
	if m, ok := expected.(Matcher); ok {
		return m.Describe()
	}
	if em, ok := asStringMap(expected); ok {
		keys := make([]string, 0, len(em))
		for k := range em {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, Describe(em[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	if es, ok := asSlice(expected); ok {
		parts := make([]string, len(es))
		for i, e := range es {
			parts[i] = Describe(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if s, ok := expected.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", expected)
}

func asStringMap(v any) (map[string]any, bool) {
	if v == nil {
		return nil, false
	}
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	for _, k := range rv.MapKeys() {
		out[k.String()] = rv.MapIndex(k).Interface()
	}
	return out, true
}

func asSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.([]any); ok {
		return s, true
	}
	// Strings are not element sequences here.
	if _, ok := v.(string); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
