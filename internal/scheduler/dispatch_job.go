package scheduler

import (
	"context"

	"github.com/pulsemetrics/engage-engine/internal/interaction"
	"github.com/pulsemetrics/engage-engine/internal/rule"
	"go.uber.org/zap"
)

// DispatchJob runs one scheduling pass over the unprocessed interactions of a scope
type DispatchJob struct {
	Scope     string `json:"scope"`
	BatchSize int    `json:"batchSize"`
}

// IsRunning reports whether an identical job is already being executed
func (job DispatchJob) IsRunning() bool {
	s := S()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningJobs[job.Scope]
}

func (job DispatchJob) setRunning(running bool) {
	s := S()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runningJobs[job.Scope] = running
}

// Run implements the cron Job interface
func (job DispatchJob) Run() {
	if job.IsRunning() {
		zap.L().Info("Skipping dispatch job because the previous one is still running",
			zap.String("scope", job.Scope))
		return
	}
	job.setRunning(true)
	defer job.setRunning(false)

	zap.L().Info("Dispatch job started", zap.String("scope", job.Scope))

	batchSize := job.BatchSize
	if batchSize <= 0 {
		batchSize = S().config.BatchSize
	}

	rulesMap, err := rule.R().GetAllEnabled(job.Scope)
	if err != nil {
		zap.L().Error("Couldn't load the enabled rules", zap.String("scope", job.Scope), zap.Error(err))
		return
	}
	rules := make([]rule.Rule, 0, len(rulesMap))
	for _, r := range rulesMap {
		rules = append(rules, r)
	}

	interactions, err := interaction.R().GetAllUnprocessed(job.Scope, batchSize)
	if err != nil {
		zap.L().Error("Couldn't load the unprocessed interactions", zap.String("scope", job.Scope), zap.Error(err))
		return
	}
	if len(interactions) == 0 {
		zap.L().Info("Dispatch job done, nothing to process", zap.String("scope", job.Scope))
		return
	}

	results := S().Process(context.Background(), rules, interactions)

	committed := 0
	failed := 0
	for _, result := range results {
		if result.RuleID != nil {
			committed++
		}
		if result.Error != "" {
			failed++
		}
	}
	zap.L().Info("Dispatch job done", zap.String("scope", job.Scope),
		zap.Int("interactions", len(interactions)), zap.Int("evaluated", len(results)),
		zap.Int("committed", committed), zap.Int("failed", failed))
}
