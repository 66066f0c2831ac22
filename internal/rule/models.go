package rule

import (
	"errors"
	"fmt"
	"sort"
)

// ConditionKind discriminates the condition variants
type ConditionKind string

const (
	// ConditionStructured is a field/operator/value condition evaluated locally
	ConditionStructured ConditionKind = "structured"
	// ConditionNaturalLanguage is an opaque prompt evaluated by the remote condition evaluator
	ConditionNaturalLanguage ConditionKind = "natural_language"
)

// Condition is a tagged variant: either a structured comparison on an
// interaction field, or a natural-language prompt requiring the remote
// condition evaluator. The Kind field selects which set of attributes applies.
type Condition struct {
	Kind ConditionKind `json:"kind"`

	Field    string      `json:"field,omitempty"`
	Operator string      `json:"operator,omitempty"`
	Value    interface{} `json:"value,omitempty"`

	Prompt string `json:"prompt,omitempty"`
}

// IsValid checks if a condition definition is valid and has no missing mandatory fields
func (c Condition) IsValid() (bool, error) {
	switch c.Kind {
	case ConditionStructured:
		if c.Field == "" {
			return false, errors.New("missing Field")
		}
		if c.Operator == "" {
			return false, errors.New("missing Operator")
		}
	case ConditionNaturalLanguage:
		if c.Prompt == "" {
			return false, errors.New("missing Prompt")
		}
	default:
		return false, fmt.Errorf("unknown condition kind %q", c.Kind)
	}
	return true, nil
}

// ActionKind identifies the side-effecting action a matching rule performs
type ActionKind string

const (
	ActionModerate         ActionKind = "moderate"
	ActionArchive          ActionKind = "archive"
	ActionAutoRespond      ActionKind = "auto_respond"
	ActionGenerateResponse ActionKind = "generate_response_for_approval"
)

// ActionDescriptor describes the committed action of a rule (kind + configuration)
type ActionDescriptor struct {
	Kind       ActionKind             `json:"kind"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Rule represents a prioritized automation policy matched against inbound
// interactions. A lower priority number is evaluated first; empty platform or
// interaction-type filters match everything. All conditions must be satisfied
// for the rule to win an interaction.
type Rule struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	Scope            string           `json:"scope"`
	Priority         int              `json:"priority"`
	Enabled          bool             `json:"enabled"`
	Platforms        []string         `json:"platforms,omitempty"`
	InteractionTypes []string         `json:"interactionTypes,omitempty"`
	Conditions       []Condition      `json:"conditions"`
	Action           ActionDescriptor `json:"action"`
}

// IsValid checks if a rule definition is valid and has no missing mandatory fields
func (r *Rule) IsValid() (bool, error) {
	if r.Name == "" {
		return false, errors.New("missing Name")
	}
	if r.Action.Kind == "" {
		return false, errors.New("missing Action kind")
	}
	switch r.Action.Kind {
	case ActionModerate, ActionArchive, ActionAutoRespond, ActionGenerateResponse:
	default:
		return false, fmt.Errorf("unknown action kind %q", r.Action.Kind)
	}
	for i, c := range r.Conditions {
		if valid, err := c.IsValid(); !valid {
			return false, fmt.Errorf("invalid condition %d: %w", i, err)
		}
	}
	return true, nil
}

// MatchesPlatform reports whether the rule applies to the given platform.
// An empty filter matches all platforms.
func (r *Rule) MatchesPlatform(platform string) bool {
	if len(r.Platforms) == 0 {
		return true
	}
	for _, p := range r.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// MatchesInteractionType reports whether the rule applies to the given
// interaction type. An empty filter matches all types.
func (r *Rule) MatchesInteractionType(interactionType string) bool {
	if len(r.InteractionTypes) == 0 {
		return true
	}
	for _, t := range r.InteractionTypes {
		if t == interactionType {
			return true
		}
	}
	return false
}

// SortByPriority orders rules by ascending priority. Priority values are not
// unique, ties are broken by name then id so the evaluation order is stable.
func SortByPriority(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		if rules[i].Name != rules[j].Name {
			return rules[i].Name < rules[j].Name
		}
		return rules[i].ID < rules[j].ID
	})
}
