package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/pulsemetrics/engage-engine/internal/dispatcher"
	"github.com/pulsemetrics/engage-engine/internal/interaction"
	"github.com/pulsemetrics/engage-engine/internal/rule"
)

// task is one executable action built from a rule's action descriptor
type task interface {
	Perform(ctx context.Context, e *Executor, inter interaction.Interaction) (dispatcher.ActionOutcome, error)
}

// buildTask validates an action descriptor and builds the corresponding task
func buildTask(descriptor rule.ActionDescriptor) (task, error) {
	switch descriptor.Kind {
	case rule.ActionModerate:
		mode, _ := descriptor.Parameters["mode"].(string)
		if mode == "" {
			mode = "hide"
		}
		switch mode {
		case "hide", "delete", "flag":
		default:
			return nil, fmt.Errorf("invalid moderation mode %q", mode)
		}
		return moderateTask{mode: mode}, nil

	case rule.ActionArchive:
		return archiveTask{}, nil

	case rule.ActionAutoRespond:
		message, _ := descriptor.Parameters["message"].(string)
		if message == "" {
			return nil, errors.New("auto_respond action requires a message parameter")
		}
		return autoRespondTask{message: message}, nil

	case rule.ActionGenerateResponse:
		instructions, _ := descriptor.Parameters["instructions"].(string)
		return generateResponseTask{instructions: instructions}, nil

	default:
		return nil, fmt.Errorf("unknown action kind %q", descriptor.Kind)
	}
}

type moderateTask struct {
	mode string
}

func (t moderateTask) Perform(ctx context.Context, e *Executor, inter interaction.Interaction) (dispatcher.ActionOutcome, error) {
	if e.platform == nil {
		return dispatcher.ActionOutcome{}, errors.New("no platform client configured")
	}
	if err := e.platform.Moderate(ctx, inter, t.mode); err != nil {
		return dispatcher.ActionOutcome{Success: false, Detail: err.Error()}, err
	}
	return dispatcher.ActionOutcome{Success: true, Status: interaction.ActionStatusDone,
		Detail: fmt.Sprintf("moderated (%s)", t.mode)}, nil
}

type archiveTask struct{}

func (t archiveTask) Perform(ctx context.Context, e *Executor, inter interaction.Interaction) (dispatcher.ActionOutcome, error) {
	if e.platform == nil {
		return dispatcher.ActionOutcome{}, errors.New("no platform client configured")
	}
	if err := e.platform.Archive(ctx, inter); err != nil {
		return dispatcher.ActionOutcome{Success: false, Detail: err.Error()}, err
	}
	return dispatcher.ActionOutcome{Success: true, Status: interaction.ActionStatusDone, Detail: "archived"}, nil
}

type autoRespondTask struct {
	message string
}

func (t autoRespondTask) Perform(ctx context.Context, e *Executor, inter interaction.Interaction) (dispatcher.ActionOutcome, error) {
	if e.platform == nil {
		return dispatcher.ActionOutcome{}, errors.New("no platform client configured")
	}
	if err := e.platform.Respond(ctx, inter, t.message); err != nil {
		return dispatcher.ActionOutcome{Success: false, Detail: err.Error()}, err
	}
	return dispatcher.ActionOutcome{Success: true, Status: interaction.ActionStatusDone, Detail: "responded"}, nil
}

// generateResponseTask drafts a reply but never publishes it: the draft waits
// for a human approval before being re-issued as an auto_respond action
type generateResponseTask struct {
	instructions string
}

func (t generateResponseTask) Perform(ctx context.Context, e *Executor, inter interaction.Interaction) (dispatcher.ActionOutcome, error) {
	if e.responder == nil {
		return dispatcher.ActionOutcome{}, errors.New("no responder configured")
	}
	draft, err := e.responder.GenerateReply(ctx, inter, t.instructions)
	if err != nil {
		return dispatcher.ActionOutcome{Success: false, Detail: err.Error()}, err
	}
	return dispatcher.ActionOutcome{Success: true, Status: interaction.ActionStatusForReview, Detail: draft}, nil
}
