package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pulsemetrics/engage-engine/internal/breaker"
	"github.com/pulsemetrics/engage-engine/internal/dispatcher"
	"github.com/pulsemetrics/engage-engine/internal/evaluator"
	"github.com/pulsemetrics/engage-engine/internal/interaction"
	"github.com/pulsemetrics/engage-engine/internal/prefetch"
	"github.com/pulsemetrics/engage-engine/internal/rule"
	"github.com/pulsemetrics/engage-engine/internal/similarity"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	_globalSchedulerMu sync.RWMutex
	_globalScheduler   *Scheduler
)

// S is used to access the global scheduler singleton
func S() *Scheduler {
	_globalSchedulerMu.RLock()
	defer _globalSchedulerMu.RUnlock()

	scheduler := _globalScheduler
	return scheduler
}

// ReplaceGlobals affect a new scheduler to the global scheduler singleton
func ReplaceGlobals(scheduler *Scheduler) func() {
	_globalSchedulerMu.Lock()
	defer _globalSchedulerMu.Unlock()

	prev := _globalScheduler
	_globalScheduler = scheduler
	return func() { ReplaceGlobals(prev) }
}

// Config groups the tunables of a scheduling pass
type Config struct {
	BatchSize            int
	MaxGlobalConcurrency int64
	PerRuleConcurrency   int64
	QuotaPerRound        int
	PrefetchChunkSize    int
	DedupTokenPrefix     int
	DedupPromptPrefix    int
	EvalTimeout          time.Duration
	Breaker              breaker.Settings
}

// DefaultConfig returns the standard scheduling tunables
func DefaultConfig() Config {
	return Config{
		BatchSize:            200,
		MaxGlobalConcurrency: 8,
		PerRuleConcurrency:   2,
		QuotaPerRound:        10,
		PrefetchChunkSize:    50,
		DedupTokenPrefix:     12,
		DedupPromptPrefix:    120,
		EvalTimeout:          30 * time.Second,
		Breaker:              breaker.DefaultSettings(),
	}
}

// ConfigFromViper builds a Config from the loaded application configuration
func ConfigFromViper() Config {
	return Config{
		BatchSize:            viper.GetInt("DISPATCH_BATCH_SIZE"),
		MaxGlobalConcurrency: viper.GetInt64("MAX_GLOBAL_CONCURRENCY"),
		PerRuleConcurrency:   viper.GetInt64("PER_RULE_CONCURRENCY"),
		QuotaPerRound:        viper.GetInt("QUOTA_PER_ROUND"),
		PrefetchChunkSize:    viper.GetInt("PREFETCH_CHUNK_SIZE"),
		DedupTokenPrefix:     viper.GetInt("DEDUP_TOKEN_PREFIX"),
		DedupPromptPrefix:    viper.GetInt("DEDUP_PROMPT_PREFIX"),
		EvalTimeout:          viper.GetDuration("EVALUATOR_TIMEOUT"),
		Breaker: breaker.Settings{
			FailureThreshold: viper.GetInt("CIRCUIT_FAILURE_THRESHOLD"),
			RecoveryTime:     viper.GetDuration("CIRCUIT_RECOVERY_TIME"),
			HalfOpenMaxCalls: viper.GetInt("CIRCUIT_HALF_OPEN_MAX_CALLS"),
		},
	}
}

// Scheduler runs fair rule-dispatch passes over unprocessed interactions.
// Circuit breakers persist across passes; everything else (evaluation cache,
// commit bookkeeping) is rebuilt per pass.
type Scheduler struct {
	C *cron.Cron

	config       Config
	interactions interaction.Repository
	evaluator    evaluator.ConditionEvaluator
	executor     dispatcher.ActionExecutor
	prefetcher   prefetch.Prefetcher
	breakers     *breaker.Manager

	mu          sync.Mutex
	runningJobs map[string]bool
}

// NewScheduler returns a new Scheduler with a ready (but not started) cron
func NewScheduler(config Config, interactions interaction.Repository, conditionEvaluator evaluator.ConditionEvaluator,
	actionExecutor dispatcher.ActionExecutor, prefetcher prefetch.Prefetcher) *Scheduler {
	return &Scheduler{
		C:            cron.New(),
		config:       config,
		interactions: interactions,
		evaluator:    conditionEvaluator,
		executor:     actionExecutor,
		prefetcher:   prefetcher,
		breakers:     breaker.NewManager(config.Breaker),
		runningJobs:  make(map[string]bool),
	}
}

// BreakerStatus exposes the per-rule circuit breaker states
func (s *Scheduler) BreakerStatus() map[int64]breaker.Status {
	return s.breakers.Status()
}

// pair is one (rule, interaction) evaluation granted during a round
type pair struct {
	rule  rule.Rule
	inter interaction.Interaction
}

// Process runs one complete scheduling pass: rules in priority order get
// round-robin quotas of interactions until the batch is exhausted or no rule
// can make progress. It returns the non-filtered results of the pass.
func (s *Scheduler) Process(ctx context.Context, rules []rule.Rule, interactions []interaction.Interaction) []dispatcher.Result {
	if len(rules) == 0 || len(interactions) == 0 {
		return nil
	}
	rules = append([]rule.Rule(nil), rules...)
	rule.SortByPriority(rules)

	evalContext := s.prefetchMetadata(ctx, interactions)
	keys := similarity.NewKeyGenerator(s.config.DedupTokenPrefix, s.config.DedupPromptPrefix)
	d := dispatcher.New(s.interactions, s.evaluator, s.executor, keys, s.config.EvalTimeout, evalContext)

	globalSem := semaphore.NewWeighted(s.config.MaxGlobalConcurrency)
	ruleSems := make(map[int64]*semaphore.Weighted, len(rules))
	cursors := make(map[int64]int, len(rules))
	for _, r := range rules {
		ruleSems[r.ID] = semaphore.NewWeighted(s.config.PerRuleConcurrency)
		cursors[r.ID] = 0
	}

	var resultsMu sync.Mutex
	results := make([]dispatcher.Result, 0, len(interactions))

	for round := 0; ; round++ {
		var granted []pair
		for _, r := range rules {
			cb := s.breakers.Get(r.ID)
			if !cb.Available() {
				continue
			}
			quota := 0
			for cursors[r.ID] < len(interactions) && quota < s.config.QuotaPerRound {
				// Allow is consumed at grant time so half-open probe budgets
				// bound the number of in-flight probes, not just outcomes
				if !cb.Allow() {
					break
				}
				granted = append(granted, pair{rule: r, inter: interactions[cursors[r.ID]]})
				cursors[r.ID]++
				quota++
			}
		}

		// Remaining work is only blocked by open breakers: end the pass and
		// let the next cron tick retry once recovery times elapse
		if len(granted) == 0 {
			break
		}

		// A single global slot degenerates to sequential execution: run the
		// round inline, in grant (priority) order
		if s.config.MaxGlobalConcurrency <= 1 {
			for _, p := range granted {
				s.runPair(ctx, d, p, nil, nil, &resultsMu, &results)
			}
		} else {
			// Pairs targeting the same interaction run as one sequential
			// chain in grant (priority) order, so the highest-priority
			// matching rule commits before lower ones are even evaluated.
			// Distinct interactions still run concurrently.
			chainOrder := make([]string, 0, len(granted))
			chains := make(map[string][]pair, len(granted))
			for _, p := range granted {
				if _, ok := chains[p.inter.ID]; !ok {
					chainOrder = append(chainOrder, p.inter.ID)
				}
				chains[p.inter.ID] = append(chains[p.inter.ID], p)
			}
			var wg sync.WaitGroup
			for _, id := range chainOrder {
				wg.Add(1)
				go func(chain []pair) {
					defer wg.Done()
					for _, p := range chain {
						s.runPair(ctx, d, p, ruleSems[p.rule.ID], globalSem, &resultsMu, &results)
					}
				}(chains[id])
			}
			wg.Wait()
		}

		zap.L().Debug("Scheduling round completed",
			zap.Int("round", round), zap.Int("granted", len(granted)))

		if ctx.Err() != nil {
			break
		}
	}

	return results
}

// runPair evaluates one granted pair under the concurrency caps and feeds its
// outcome back into the rule's circuit breaker. Filter rejects count as neither
// success nor failure and release the probe slot their grant consumed.
func (s *Scheduler) runPair(ctx context.Context, d *dispatcher.Dispatcher, p pair,
	ruleSem *semaphore.Weighted, globalSem *semaphore.Weighted,
	resultsMu *sync.Mutex, results *[]dispatcher.Result) {
	if ruleSem != nil {
		if err := ruleSem.Acquire(ctx, 1); err != nil {
			return
		}
		defer ruleSem.Release(1)
	}
	if globalSem != nil {
		if err := globalSem.Acquire(ctx, 1); err != nil {
			return
		}
		defer globalSem.Release(1)
	}

	result, err := d.EvaluateAndDispatch(ctx, p.inter, p.rule)
	cb := s.breakers.Get(p.rule.ID)
	switch {
	case err != nil:
		cb.RecordFailure()
	case result.Filtered:
		// The pair never reached the evaluator or the action: give the
		// probe slot consumed at grant time back to the breaker
		cb.ReleaseProbe()
	default:
		cb.RecordSuccess()
	}

	if !result.Filtered {
		resultsMu.Lock()
		*results = append(*results, result)
		resultsMu.Unlock()
	}
}

// prefetchMetadata fetches author and channel metadata for the whole batch in
// chunks, best-effort, and wraps it as the shared evaluation context
func (s *Scheduler) prefetchMetadata(ctx context.Context, interactions []interaction.Interaction) map[string]interface{} {
	if s.prefetcher == nil {
		return nil
	}

	ids := make([]string, 0, len(interactions)*2)
	for _, inter := range interactions {
		ids = append(ids, inter.AuthorID, inter.ChannelID)
	}
	ids = prefetch.Dedupe(ids)

	merged := prefetch.ChunkedFetch(ctx, s.prefetcher, ids, s.config.PrefetchChunkSize)
	if len(merged) == 0 {
		return nil
	}
	return map[string]interface{}{"metadata": merged}
}
