package executor

import (
	"context"
	"sync"

	"github.com/pulsemetrics/engage-engine/internal/dispatcher"
	"github.com/pulsemetrics/engage-engine/internal/interaction"
	"github.com/pulsemetrics/engage-engine/internal/rule"
	"go.uber.org/zap"
)

var (
	_globalExecutorMu sync.RWMutex
	_globalExecutor   *Executor
)

// E is used to access the global executor singleton
func E() *Executor {
	_globalExecutorMu.RLock()
	defer _globalExecutorMu.RUnlock()

	executor := _globalExecutor
	return executor
}

// ReplaceGlobals affect a new executor to the global executor singleton
func ReplaceGlobals(executor *Executor) func() {
	_globalExecutorMu.Lock()
	defer _globalExecutorMu.Unlock()

	prev := _globalExecutor
	_globalExecutor = executor
	return func() { ReplaceGlobals(prev) }
}

// PlatformClient performs moderation side-effects against a social platform
// API (through the platform gateway)
type PlatformClient interface {
	Moderate(ctx context.Context, inter interaction.Interaction, mode string) error
	Archive(ctx context.Context, inter interaction.Interaction) error
	Respond(ctx context.Context, inter interaction.Interaction, message string) error
}

// Responder generates reply text for an interaction (an AI gateway collaborator)
type Responder interface {
	GenerateReply(ctx context.Context, inter interaction.Interaction, instructions string) (string, error)
}

// ActionBatch is one re-issued action routed through the asynchronous
// batch processor (approval flows, operator retries)
type ActionBatch struct {
	Interaction interaction.Interaction
	Descriptor  rule.ActionDescriptor
}

// Executor routes committed action descriptors to the platform and AI
// collaborators. It serves the dispatcher synchronously during a scheduling
// pass and processes re-issued batches asynchronously.
type Executor struct {
	platform  PlatformClient
	responder Responder

	BatchReceiver chan []ActionBatch
	Close         chan struct{}
}

// NewExecutor renders a new Executor
func NewExecutor(platform PlatformClient, responder Responder) *Executor {
	return &Executor{
		platform:      platform,
		responder:     responder,
		BatchReceiver: make(chan []ActionBatch),
		Close:         make(chan struct{}),
	}
}

// Execute performs one committed action. It implements the dispatcher's
// ActionExecutor interface: a failed action is reported through the outcome,
// never retried here.
func (e *Executor) Execute(ctx context.Context, inter interaction.Interaction, descriptor rule.ActionDescriptor) (dispatcher.ActionOutcome, error) {
	task, err := buildTask(descriptor)
	if err != nil {
		return dispatcher.ActionOutcome{Success: false, Detail: err.Error()}, err
	}
	return task.Perform(ctx, e, inter)
}

// StartBatchProcessor starts the goroutine that listens to re-issued action batches
func (e *Executor) StartBatchProcessor() {
	go func() {
		for {
			select {
			case batchs := <-e.BatchReceiver:
				if len(batchs) > 0 {
					zap.L().Info("Executor started the batch processing", zap.Int("actions", len(batchs)))
					e.ApplyBatchs(batchs)
					zap.L().Info("Executor batch done")
				}
			case <-e.Close:
				return
			}
		}
	}()
}

// StopBatchProcessor stops the batch processor goroutine
func (e *Executor) StopBatchProcessor() {
	zap.L().Info("Stopping executor batch processor...")
	e.Close <- struct{}{}
	zap.L().Info("Stopping executor batch processor...Done")
}

// ApplyBatchs executes every re-issued action and persists its outcome.
// Failures are logged and reported on the interaction, never fatal.
func (e *Executor) ApplyBatchs(batchs []ActionBatch) {
	for _, batch := range batchs {
		outcome, err := e.Execute(context.Background(), batch.Interaction, batch.Descriptor)

		status := outcome.Status
		detail := outcome.Detail
		switch {
		case err != nil:
			status = interaction.ActionStatusFailed
			detail = err.Error()
			zap.L().Warn("Error while performing re-issued action",
				zap.String("interactionID", batch.Interaction.ID),
				zap.String("kind", string(batch.Descriptor.Kind)), zap.Error(err))
		case !outcome.Success:
			status = interaction.ActionStatusFailed
			zap.L().Warn("Re-issued action reported failure",
				zap.String("interactionID", batch.Interaction.ID),
				zap.String("kind", string(batch.Descriptor.Kind)), zap.String("detail", detail))
		case status == "":
			status = interaction.ActionStatusDone
		}

		if repository := interaction.R(); repository != nil {
			if err := repository.UpdateActionStatus(batch.Interaction.ID, status, detail); err != nil {
				zap.L().Warn("Couldn't persist the re-issued action status",
					zap.String("interactionID", batch.Interaction.ID), zap.Error(err))
			}
		}
	}
}
