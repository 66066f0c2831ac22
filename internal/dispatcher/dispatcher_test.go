package dispatcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pulsemetrics/engage-engine/internal/evaluator"
	"github.com/pulsemetrics/engage-engine/internal/interaction"
	"github.com/pulsemetrics/engage-engine/internal/rule"
	"github.com/pulsemetrics/engage-engine/internal/similarity"
)

// mockEvaluator answers natural-language conditions from a prompt substring
// table and records every call
type mockEvaluator struct {
	mu      sync.Mutex
	calls   int
	answers map[string]bool
	err     error
}

func (m *mockEvaluator) Evaluate(ctx context.Context, inter interaction.Interaction, prompt string, evalContext map[string]interface{}) (evaluator.Evaluation, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return evaluator.Evaluation{}, m.err
	}
	for key, match := range m.answers {
		if strings.Contains(prompt, key) {
			return evaluator.Evaluation{Match: match, Confidence: 0.9}, nil
		}
	}
	return evaluator.Evaluation{Match: false, Confidence: 0.9}, nil
}

func (m *mockEvaluator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockExecutor records executed actions
type mockExecutor struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (m *mockExecutor) Execute(ctx context.Context, inter interaction.Interaction, descriptor rule.ActionDescriptor) (ActionOutcome, error) {
	m.mu.Lock()
	m.calls = append(m.calls, inter.ID)
	m.mu.Unlock()
	if m.fail {
		return ActionOutcome{Success: false, Detail: "platform rejected the call"}, nil
	}
	return ActionOutcome{Success: true, Status: interaction.ActionStatusDone}, nil
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func newTestDispatcher(repo interaction.Repository, eval evaluator.ConditionEvaluator, exec ActionExecutor) *Dispatcher {
	return New(repo, eval, exec, similarity.NewKeyGenerator(12, 120), time.Second, nil)
}

func seed(t *testing.T, repo interaction.Repository, inter interaction.Interaction) interaction.Interaction {
	t.Helper()
	id, err := repo.Create(inter)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	created, _, err := repo.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return created
}

func TestDispatchCheapFiltersSkipEvaluator(t *testing.T) {
	repo := interaction.NewMemoryRepository()
	eval := &mockEvaluator{answers: map[string]bool{"question": true}}
	exec := &mockExecutor{}
	d := newTestDispatcher(repo, eval, exec)

	inter := seed(t, repo, interaction.Interaction{Platform: "tiktok", Type: interaction.TypeComment, Text: "how?"})

	r := rule.Rule{ID: 1, Name: "yt-only", Enabled: true, Platforms: []string{"youtube"},
		Conditions: []rule.Condition{{Kind: rule.ConditionNaturalLanguage, Prompt: "is a question"}},
		Action:     rule.ActionDescriptor{Kind: rule.ActionArchive}}

	result, err := d.EvaluateAndDispatch(context.Background(), inter, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matched || !result.Filtered {
		t.Fatalf("platform mismatch must be a filter reject, got %+v", result)
	}
	if eval.callCount() != 0 {
		t.Fatalf("cheap filters must run before the evaluator, got %d calls", eval.callCount())
	}

	disabled := rule.Rule{ID: 2, Name: "disabled", Enabled: false,
		Action: rule.ActionDescriptor{Kind: rule.ActionArchive}}
	result, err = d.EvaluateAndDispatch(context.Background(), inter, disabled)
	if err != nil || result.Matched || !result.Filtered {
		t.Fatalf("disabled rule must be a filter reject, got %+v err=%v", result, err)
	}
}

func TestDispatchCommitsAndActs(t *testing.T) {
	repo := interaction.NewMemoryRepository()
	eval := &mockEvaluator{answers: map[string]bool{"question": true}}
	exec := &mockExecutor{}
	d := newTestDispatcher(repo, eval, exec)

	inter := seed(t, repo, interaction.Interaction{Platform: "youtube", Type: interaction.TypeComment, Text: "how do I fix this?"})

	r := rule.Rule{ID: 7, Name: "questions", Enabled: true,
		Conditions: []rule.Condition{
			{Kind: rule.ConditionStructured, Field: "platform", Operator: "eq", Value: "youtube"},
			{Kind: rule.ConditionNaturalLanguage, Prompt: "is a question"},
		},
		Action: rule.ActionDescriptor{Kind: rule.ActionAutoRespond}}

	result, err := d.EvaluateAndDispatch(context.Background(), inter, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Matched || !result.Acted || result.RuleID == nil || *result.RuleID != 7 {
		t.Fatalf("unexpected result: %+v", result)
	}

	stored, _, _ := repo.Get(inter.ID)
	if stored.ProcessedByRuleID == nil || *stored.ProcessedByRuleID != 7 {
		t.Fatalf("interaction must be committed to rule 7, got %+v", stored.ProcessedByRuleID)
	}
	if stored.ActionStatus != interaction.ActionStatusDone {
		t.Fatalf("action status must be done, got %q", stored.ActionStatus)
	}
	if exec.callCount() != 1 {
		t.Fatalf("expected 1 action execution, got %d", exec.callCount())
	}
}

func TestDispatchIdempotenceNoSecondAction(t *testing.T) {
	repo := interaction.NewMemoryRepository()
	eval := &mockEvaluator{answers: map[string]bool{"always": true}}
	exec := &mockExecutor{}
	d := newTestDispatcher(repo, eval, exec)

	inter := seed(t, repo, interaction.Interaction{Platform: "youtube", Type: interaction.TypeComment, Text: "nice"})
	r := rule.Rule{ID: 1, Name: "always", Enabled: true,
		Conditions: []rule.Condition{{Kind: rule.ConditionNaturalLanguage, Prompt: "always matches"}},
		Action:     rule.ActionDescriptor{Kind: rule.ActionArchive}}

	if _, err := d.EvaluateAndDispatch(context.Background(), inter, r); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}

	// Re-dispatch with a stale snapshot (processed fields unset): the CAS
	// detects the earlier commit and no second action runs
	d2 := newTestDispatcher(repo, eval, exec)
	result, err := d2.EvaluateAndDispatch(context.Background(), inter, r)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if result.Acted {
		t.Fatalf("a committed interaction must never act twice")
	}
	if result.RuleID != nil {
		t.Fatalf("a lost commit race must not claim the interaction")
	}
	if exec.callCount() != 1 {
		t.Fatalf("expected exactly 1 action execution, got %d", exec.callCount())
	}

	// Fresh snapshot: short-circuits before any evaluation
	stored, _, _ := repo.Get(inter.ID)
	before := eval.callCount()
	result, err = d2.EvaluateAndDispatch(context.Background(), stored, r)
	if err != nil || result.Matched || !result.Filtered {
		t.Fatalf("processed interaction must short-circuit, got %+v err=%v", result, err)
	}
	if eval.callCount() != before {
		t.Fatalf("processed interaction must not be evaluated again")
	}
}

func TestDispatchDedupSharesEvaluatorCall(t *testing.T) {
	repo := interaction.NewMemoryRepository()
	eval := &mockEvaluator{answers: map[string]bool{"question": false}}
	exec := &mockExecutor{}
	d := newTestDispatcher(repo, eval, exec)

	r := rule.Rule{ID: 1, Name: "questions", Enabled: true,
		Conditions: []rule.Condition{{Kind: rule.ConditionNaturalLanguage, Prompt: "is a question"}},
		Action:     rule.ActionDescriptor{Kind: rule.ActionArchive}}

	a := seed(t, repo, interaction.Interaction{Platform: "youtube", Type: interaction.TypeComment,
		ChannelID: "chan-1", Text: "love this video so much, keep it up!"})
	b := seed(t, repo, interaction.Interaction{Platform: "youtube", Type: interaction.TypeComment,
		ChannelID: "chan-1", Text: "love this video so much, keep it up!!! 🎉"})
	c := seed(t, repo, interaction.Interaction{Platform: "youtube", Type: interaction.TypeComment,
		ChannelID: "chan-1", Text: "completely different message"})

	for _, inter := range []interaction.Interaction{a, b, c} {
		if _, err := d.EvaluateAndDispatch(context.Background(), inter, r); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}

	if eval.callCount() != 2 {
		t.Fatalf("near-duplicates must share one evaluator call: expected 2 calls, got %d", eval.callCount())
	}
}

func TestDispatchEvaluatorFailure(t *testing.T) {
	repo := interaction.NewMemoryRepository()
	eval := &mockEvaluator{err: errors.New("llm timeout")}
	exec := &mockExecutor{}
	d := newTestDispatcher(repo, eval, exec)

	inter := seed(t, repo, interaction.Interaction{Platform: "youtube", Type: interaction.TypeComment, Text: "hi"})
	r := rule.Rule{ID: 1, Name: "r", Enabled: true,
		Conditions: []rule.Condition{{Kind: rule.ConditionNaturalLanguage, Prompt: "p"}},
		Action:     rule.ActionDescriptor{Kind: rule.ActionArchive}}

	result, err := d.EvaluateAndDispatch(context.Background(), inter, r)
	if err == nil {
		t.Fatalf("evaluator failure must surface as a breaker-countable error")
	}
	if result.Matched || result.Error == "" {
		t.Fatalf("unexpected result: %+v", result)
	}

	// No commitment happened: the interaction stays eligible for future batches
	stored, _, _ := repo.Get(inter.ID)
	if stored.Processed() {
		t.Fatalf("a failed evaluation must not commit the interaction")
	}
}

func TestDispatchActionFailureStaysCommitted(t *testing.T) {
	repo := interaction.NewMemoryRepository()
	eval := &mockEvaluator{answers: map[string]bool{"always": true}}
	exec := &mockExecutor{fail: true}
	d := newTestDispatcher(repo, eval, exec)

	inter := seed(t, repo, interaction.Interaction{Platform: "youtube", Type: interaction.TypeComment, Text: "hi"})
	r := rule.Rule{ID: 9, Name: "r", Enabled: true,
		Conditions: []rule.Condition{{Kind: rule.ConditionNaturalLanguage, Prompt: "always"}},
		Action:     rule.ActionDescriptor{Kind: rule.ActionModerate}}

	result, err := d.EvaluateAndDispatch(context.Background(), inter, r)
	if err == nil {
		t.Fatalf("action failure must surface as a breaker-countable error")
	}
	if !result.Matched || result.Acted {
		t.Fatalf("unexpected result: %+v", result)
	}

	// The commitment is terminal: no re-routing to another rule
	stored, _, _ := repo.Get(inter.ID)
	if stored.ProcessedByRuleID == nil || *stored.ProcessedByRuleID != 9 {
		t.Fatalf("a failed action must not un-commit the interaction")
	}
	if stored.ActionStatus != interaction.ActionStatusFailed {
		t.Fatalf("action status must be failed, got %q", stored.ActionStatus)
	}

	other := rule.Rule{ID: 10, Name: "other", Enabled: true,
		Conditions: []rule.Condition{{Kind: rule.ConditionNaturalLanguage, Prompt: "always"}},
		Action:     rule.ActionDescriptor{Kind: rule.ActionArchive}}
	result, err = d.EvaluateAndDispatch(context.Background(), inter, other)
	if err != nil || result.Matched {
		t.Fatalf("committed interaction must not be re-dispatched, got %+v err=%v", result, err)
	}
}
