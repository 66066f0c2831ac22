package evaluator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/pulsemetrics/engage-engine/internal/rule"
)

// structuredLanguage is the expression language used for structured
// (field/operator/value) conditions, extended with text helpers
var structuredLanguage = gval.Full(
	gval.Function("contains", func(s string, substr string) bool {
		return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
	}),
	gval.Function("matches", func(s string, pattern string) (bool, error) {
		return regexp.MatchString(pattern, s)
	}),
)

// structuredExpressions maps each supported operator to its gval expression
// over the variables "actual" (interaction field) and "expected" (rule value)
var structuredExpressions = map[string]string{
	"eq":           "actual == expected",
	"neq":          "actual != expected",
	"gt":           "actual > expected",
	"gte":          "actual >= expected",
	"lt":           "actual < expected",
	"lte":          "actual <= expected",
	"contains":     "contains(actual, expected)",
	"not_contains": "!contains(actual, expected)",
	"matches":      "matches(actual, expected)",
}

// EvaluateStructured evaluates a structured condition against the flattened
// interaction fields. A missing field is a plain no-match; an unknown operator
// or a non-boolean expression result is an error.
func EvaluateStructured(condition rule.Condition, fields map[string]interface{}) (bool, error) {
	actual, ok := fields[condition.Field]
	if !ok {
		return false, nil
	}

	expression, ok := structuredExpressions[condition.Operator]
	if !ok {
		return false, fmt.Errorf("unknown structured condition operator %q", condition.Operator)
	}

	result, err := structuredLanguage.Evaluate(expression, map[string]interface{}{
		"actual":   actual,
		"expected": condition.Value,
	})
	if err != nil {
		return false, fmt.Errorf("structured condition evaluation failed on field %q: %w", condition.Field, err)
	}

	match, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("structured condition on field %q did not evaluate to a boolean", condition.Field)
	}
	return match, nil
}
