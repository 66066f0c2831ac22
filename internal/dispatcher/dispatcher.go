package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pulsemetrics/engage-engine/internal/evaluator"
	"github.com/pulsemetrics/engage-engine/internal/interaction"
	"github.com/pulsemetrics/engage-engine/internal/metrics"
	"github.com/pulsemetrics/engage-engine/internal/rule"
	"github.com/pulsemetrics/engage-engine/internal/similarity"
	"go.uber.org/zap"
)

// Result is the outcome of one (rule, interaction) dispatch step, surfaced to
// the caller of a scheduling pass
type Result struct {
	InteractionID string `json:"interactionId"`
	RuleID        *int64 `json:"ruleId,omitempty"`
	Matched       bool   `json:"matched"`
	Acted         bool   `json:"acted"`
	Error         string `json:"error,omitempty"`

	// Filtered marks a cheap local reject (disabled rule, platform/type
	// mismatch, already-processed interaction): not an error and not
	// counted against the rule's circuit breaker.
	Filtered bool `json:"-"`
}

// ActionOutcome is the result of a committed action execution
type ActionOutcome struct {
	Success bool
	Status  string
	Detail  string
}

// ActionExecutor performs the side-effecting action of a winning rule.
// A failed action is reported but never causes the interaction to be
// re-dispatched to another rule.
type ActionExecutor interface {
	Execute(ctx context.Context, inter interaction.Interaction, descriptor rule.ActionDescriptor) (ActionOutcome, error)
}

// Dispatcher walks (rule, interaction) pairs and commits each interaction to
// the first matching enabled rule. One Dispatcher instance lives for exactly
// one scheduling pass: its evaluation cache and committed set are batch-scoped.
type Dispatcher struct {
	interactions interaction.Repository
	evaluator    evaluator.ConditionEvaluator
	executor     ActionExecutor
	keys         *similarity.KeyGenerator
	cache        *evaluator.Cache
	evalTimeout  time.Duration
	evalContext  map[string]interface{}

	// committed tracks interactions decided during this batch so later pairs
	// short-circuit without re-reading the repository
	committed sync.Map
}

// New returns a Dispatcher for one scheduling pass. evalContext carries the
// prefetched external metadata and is read-only for the duration of the batch.
func New(interactions interaction.Repository, conditionEvaluator evaluator.ConditionEvaluator, executor ActionExecutor,
	keys *similarity.KeyGenerator, evalTimeout time.Duration, evalContext map[string]interface{}) *Dispatcher {
	return &Dispatcher{
		interactions: interactions,
		evaluator:    conditionEvaluator,
		executor:     executor,
		keys:         keys,
		cache:        evaluator.NewCache(),
		evalTimeout:  evalTimeout,
		evalContext:  evalContext,
	}
}

// EvaluateAndDispatch evaluates one (rule, interaction) pair and commits the
// interaction to the rule when every condition matches. A non-nil error marks
// a breaker-countable failure (evaluator or action); a filter reject is
// reported through Result.Filtered and counts as neither.
func (d *Dispatcher) EvaluateAndDispatch(ctx context.Context, inter interaction.Interaction, r rule.Rule) (Result, error) {
	result := Result{InteractionID: inter.ID}

	// Idempotence: an interaction committed before or during this batch is terminal
	if inter.Processed() {
		result.Filtered = true
		return result, nil
	}
	if _, ok := d.committed.Load(inter.ID); ok {
		result.Filtered = true
		return result, nil
	}

	// Cheap local filters run before any remote call
	if !r.Enabled || !r.MatchesPlatform(inter.Platform) || !r.MatchesInteractionType(inter.Type) {
		result.Filtered = true
		return result, nil
	}

	fields := inter.FieldMap()
	for _, condition := range r.Conditions {
		switch condition.Kind {
		case rule.ConditionStructured:
			match, err := evaluator.EvaluateStructured(condition, fields)
			if err != nil {
				result.Error = err.Error()
				return result, err
			}
			if !match {
				return result, nil
			}

		case rule.ConditionNaturalLanguage:
			evaluation, _, err := d.evaluate(ctx, inter, condition.Prompt)
			if err != nil {
				result.Error = err.Error()
				return result, err
			}
			if !evaluation.Match {
				return result, nil
			}

		default:
			err := fmt.Errorf("unknown condition kind %q on rule %d", condition.Kind, r.ID)
			result.Error = err.Error()
			return result, err
		}
	}

	// Every condition matched: atomically claim the interaction. First writer
	// wins; a lost race is a benign no-op, the interaction belongs to whoever
	// committed it.
	result.Matched = true
	now := time.Now().Truncate(1 * time.Millisecond).UTC()
	committed, err := d.interactions.TryCommit(inter.ID, r.ID, now)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	d.committed.Store(inter.ID, r.ID)
	if !committed {
		zap.L().Debug("Interaction already committed by a concurrent evaluation",
			zap.String("interactionID", inter.ID), zap.Int64("ruleID", r.ID))
		return result, nil
	}

	ruleID := r.ID
	result.RuleID = &ruleID
	metrics.CommitsTotal.Inc()

	// The commit is terminal whatever happens to the action: a failed action
	// is reported, never re-dispatched to a different rule.
	outcome, err := d.executor.Execute(ctx, inter, r.Action)
	if err != nil {
		result.Error = err.Error()
		d.updateActionStatus(inter.ID, interaction.ActionStatusFailed, err.Error())
		metrics.ActionsTotal.WithLabelValues(string(r.Action.Kind), "error").Inc()
		return result, err
	}
	if !outcome.Success {
		result.Error = outcome.Detail
		d.updateActionStatus(inter.ID, interaction.ActionStatusFailed, outcome.Detail)
		metrics.ActionsTotal.WithLabelValues(string(r.Action.Kind), "failure").Inc()
		return result, errors.New(outcome.Detail)
	}

	result.Acted = true
	status := outcome.Status
	if status == "" {
		status = interaction.ActionStatusDone
	}
	d.updateActionStatus(inter.ID, status, outcome.Detail)
	metrics.ActionsTotal.WithLabelValues(string(r.Action.Kind), "success").Inc()
	return result, nil
}

func (d *Dispatcher) updateActionStatus(id string, status string, detail string) {
	if err := d.interactions.UpdateActionStatus(id, status, detail); err != nil {
		zap.L().Warn("Couldn't update the interaction action status",
			zap.String("interactionID", id), zap.Error(err))
	}
}

// evaluate resolves a natural-language condition through the batch cache: a
// single evaluator call serves every pair sharing the same similarity key
func (d *Dispatcher) evaluate(ctx context.Context, inter interaction.Interaction, prompt string) (evaluator.Evaluation, bool, error) {
	key := d.keys.Key(prompt, inter.ChannelID, inter.Text)
	return d.cache.Do(key, func() (evaluator.Evaluation, error) {
		evalCtx, cancel := context.WithTimeout(ctx, d.evalTimeout)
		defer cancel()

		evaluation, err := d.evaluator.Evaluate(evalCtx, inter, prompt, d.evalContext)
		switch {
		case err != nil:
			metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		case evaluation.Match:
			metrics.EvaluationsTotal.WithLabelValues("match").Inc()
		default:
			metrics.EvaluationsTotal.WithLabelValues("no_match").Inc()
		}
		return evaluation, err
	})
}
