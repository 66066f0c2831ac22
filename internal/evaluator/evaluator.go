package evaluator

import (
	"context"

	"github.com/pulsemetrics/engage-engine/internal/interaction"
)

// Evaluation is the outcome of one condition check
type Evaluation struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
}

// ConditionEvaluator decides whether an interaction satisfies a
// natural-language condition. Implementations typically call a remote LLM and
// must be safe for concurrent use. Errors propagate as evaluation failures and
// are counted against the owning rule's circuit breaker.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, inter interaction.Interaction, prompt string, evalContext map[string]interface{}) (Evaluation, error)
}
