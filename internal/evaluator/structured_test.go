package evaluator

import (
	"testing"

	"github.com/pulsemetrics/engage-engine/internal/rule"
)

func TestEvaluateStructured(t *testing.T) {
	fields := map[string]interface{}{
		"platform":        "youtube",
		"text":            "How do I fix this?",
		"metadata.length": 18,
	}

	testCases := []struct {
		name      string
		condition rule.Condition
		want      bool
		shouldErr bool
	}{
		{"eq match", rule.Condition{Kind: rule.ConditionStructured, Field: "platform", Operator: "eq", Value: "youtube"}, true, false},
		{"eq no match", rule.Condition{Kind: rule.ConditionStructured, Field: "platform", Operator: "eq", Value: "tiktok"}, false, false},
		{"neq", rule.Condition{Kind: rule.ConditionStructured, Field: "platform", Operator: "neq", Value: "tiktok"}, true, false},
		{"contains case insensitive", rule.Condition{Kind: rule.ConditionStructured, Field: "text", Operator: "contains", Value: "how do i"}, true, false},
		{"not_contains", rule.Condition{Kind: rule.ConditionStructured, Field: "text", Operator: "not_contains", Value: "refund"}, true, false},
		{"matches", rule.Condition{Kind: rule.ConditionStructured, Field: "text", Operator: "matches", Value: `\?$`}, true, false},
		{"gt numeric", rule.Condition{Kind: rule.ConditionStructured, Field: "metadata.length", Operator: "gt", Value: 10}, true, false},
		{"lte numeric", rule.Condition{Kind: rule.ConditionStructured, Field: "metadata.length", Operator: "lte", Value: 10}, false, false},
		{"missing field is no match", rule.Condition{Kind: rule.ConditionStructured, Field: "unknown", Operator: "eq", Value: "x"}, false, false},
		{"unknown operator", rule.Condition{Kind: rule.ConditionStructured, Field: "platform", Operator: "sounds_like", Value: "x"}, false, true},
	}

	for _, tc := range testCases {
		got, err := EvaluateStructured(tc.condition, fields)
		if tc.shouldErr {
			if err == nil {
				t.Errorf("%s: expected an error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
