package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pulsemetrics/engage-engine/internal/interaction"
)

// HTTPConditionEvaluator calls a remote AI gateway to evaluate
// natural-language conditions. The gateway wraps the actual LLM prompting,
// which is outside this service.
type HTTPConditionEvaluator struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPConditionEvaluator returns a ConditionEvaluator backed by the AI
// gateway at baseURL
func NewHTTPConditionEvaluator(baseURL string, apiKey string, timeout time.Duration) *HTTPConditionEvaluator {
	return &HTTPConditionEvaluator{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type evaluationRequest struct {
	InteractionID string                 `json:"interactionId"`
	Platform      string                 `json:"platform"`
	Type          string                 `json:"type"`
	Text          string                 `json:"text"`
	AuthorName    string                 `json:"authorName,omitempty"`
	Prompt        string                 `json:"prompt"`
	Context       map[string]interface{} `json:"context,omitempty"`
}

// Evaluate implements the ConditionEvaluator interface
func (e *HTTPConditionEvaluator) Evaluate(ctx context.Context, inter interaction.Interaction, prompt string, evalContext map[string]interface{}) (Evaluation, error) {
	body, err := json.Marshal(evaluationRequest{
		InteractionID: inter.ID,
		Platform:      inter.Platform,
		Type:          inter.Type,
		Text:          inter.Text,
		AuthorName:    inter.AuthorName,
		Prompt:        prompt,
		Context:       evalContext,
	})
	if err != nil {
		return Evaluation{}, fmt.Errorf("couldn't marshal the evaluation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/evaluations", bytes.NewReader(body))
	if err != nil {
		return Evaluation{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluation call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Evaluation{}, fmt.Errorf("evaluation call returned status %d", resp.StatusCode)
	}

	var evaluation Evaluation
	if err := json.NewDecoder(resp.Body).Decode(&evaluation); err != nil {
		return Evaluation{}, fmt.Errorf("couldn't decode the evaluation response: %w", err)
	}
	return evaluation, nil
}
