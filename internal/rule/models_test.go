package rule

import (
	"testing"
)

func TestRuleIsValid(t *testing.T) {
	testCases := []struct {
		name  string
		rule  Rule
		valid bool
	}{
		{
			"valid filter-only rule",
			Rule{Name: "archive-all", Action: ActionDescriptor{Kind: ActionArchive}},
			true,
		},
		{
			"missing name",
			Rule{Action: ActionDescriptor{Kind: ActionArchive}},
			false,
		},
		{
			"missing action kind",
			Rule{Name: "r"},
			false,
		},
		{
			"unknown action kind",
			Rule{Name: "r", Action: ActionDescriptor{Kind: "explode"}},
			false,
		},
		{
			"valid structured condition",
			Rule{Name: "r", Action: ActionDescriptor{Kind: ActionModerate},
				Conditions: []Condition{{Kind: ConditionStructured, Field: "platform", Operator: "eq", Value: "youtube"}}},
			true,
		},
		{
			"structured condition without field",
			Rule{Name: "r", Action: ActionDescriptor{Kind: ActionModerate},
				Conditions: []Condition{{Kind: ConditionStructured, Operator: "eq", Value: "youtube"}}},
			false,
		},
		{
			"valid natural language condition",
			Rule{Name: "r", Action: ActionDescriptor{Kind: ActionAutoRespond},
				Conditions: []Condition{{Kind: ConditionNaturalLanguage, Prompt: "is a question"}}},
			true,
		},
		{
			"natural language condition without prompt",
			Rule{Name: "r", Action: ActionDescriptor{Kind: ActionAutoRespond},
				Conditions: []Condition{{Kind: ConditionNaturalLanguage}}},
			false,
		},
		{
			"unknown condition kind",
			Rule{Name: "r", Action: ActionDescriptor{Kind: ActionArchive},
				Conditions: []Condition{{Kind: "fuzzy"}}},
			false,
		},
	}

	for _, tc := range testCases {
		valid, err := tc.rule.IsValid()
		if valid != tc.valid {
			t.Errorf("%s: IsValid() = %v (err: %v), want %v", tc.name, valid, err, tc.valid)
		}
	}
}

func TestRuleFilters(t *testing.T) {
	r := Rule{Platforms: []string{"youtube", "tiktok"}, InteractionTypes: []string{"comment"}}

	if !r.MatchesPlatform("youtube") || !r.MatchesPlatform("tiktok") {
		t.Errorf("listed platforms must match")
	}
	if r.MatchesPlatform("instagram") {
		t.Errorf("unlisted platform must not match")
	}
	if !r.MatchesInteractionType("comment") {
		t.Errorf("listed interaction type must match")
	}
	if r.MatchesInteractionType("dm") {
		t.Errorf("unlisted interaction type must not match")
	}

	open := Rule{}
	if !open.MatchesPlatform("anything") || !open.MatchesInteractionType("anything") {
		t.Errorf("empty filters must match everything")
	}
}

func TestSortByPriority(t *testing.T) {
	rules := []Rule{
		{ID: 3, Name: "charlie", Priority: 5},
		{ID: 1, Name: "bravo", Priority: 1},
		{ID: 2, Name: "alpha", Priority: 5},
		{ID: 4, Name: "alpha", Priority: 5},
	}
	SortByPriority(rules)

	wantIDs := []int64{1, 2, 4, 3}
	for i, want := range wantIDs {
		if rules[i].ID != want {
			t.Fatalf("position %d: got rule %d, want %d (order: %v)", i, rules[i].ID, want, rules)
		}
	}
}
