package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/pulsemetrics/engage-engine/internal/interaction"
	"github.com/pulsemetrics/engage-engine/internal/rule"
)

type fakePlatform struct {
	moderations []string
	archives    int
	responses   []string
	err         error
}

func (p *fakePlatform) Moderate(ctx context.Context, inter interaction.Interaction, mode string) error {
	p.moderations = append(p.moderations, mode)
	return p.err
}

func (p *fakePlatform) Archive(ctx context.Context, inter interaction.Interaction) error {
	p.archives++
	return p.err
}

func (p *fakePlatform) Respond(ctx context.Context, inter interaction.Interaction, message string) error {
	p.responses = append(p.responses, message)
	return p.err
}

type fakeResponder struct {
	reply string
	err   error
}

func (r *fakeResponder) GenerateReply(ctx context.Context, inter interaction.Interaction, instructions string) (string, error) {
	return r.reply, r.err
}

func TestExecuteModerate(t *testing.T) {
	platform := &fakePlatform{}
	e := NewExecutor(platform, nil)

	outcome, err := e.Execute(context.Background(), interaction.Interaction{ID: "i1"},
		rule.ActionDescriptor{Kind: rule.ActionModerate, Parameters: map[string]interface{}{"mode": "delete"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success || outcome.Status != interaction.ActionStatusDone {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(platform.moderations) != 1 || platform.moderations[0] != "delete" {
		t.Fatalf("expected one delete moderation, got %v", platform.moderations)
	}
}

func TestExecuteModerateDefaultsToHide(t *testing.T) {
	platform := &fakePlatform{}
	e := NewExecutor(platform, nil)

	if _, err := e.Execute(context.Background(), interaction.Interaction{ID: "i1"},
		rule.ActionDescriptor{Kind: rule.ActionModerate}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(platform.moderations) != 1 || platform.moderations[0] != "hide" {
		t.Fatalf("expected a hide moderation, got %v", platform.moderations)
	}
}

func TestExecuteModerateInvalidMode(t *testing.T) {
	e := NewExecutor(&fakePlatform{}, nil)

	_, err := e.Execute(context.Background(), interaction.Interaction{ID: "i1"},
		rule.ActionDescriptor{Kind: rule.ActionModerate, Parameters: map[string]interface{}{"mode": "nuke"}})
	if err == nil {
		t.Fatalf("an invalid moderation mode must fail")
	}
}

func TestExecuteAutoRespondRequiresMessage(t *testing.T) {
	e := NewExecutor(&fakePlatform{}, nil)

	_, err := e.Execute(context.Background(), interaction.Interaction{ID: "i1"},
		rule.ActionDescriptor{Kind: rule.ActionAutoRespond})
	if err == nil {
		t.Fatalf("auto_respond without a message must fail")
	}
}

func TestExecuteGenerateResponseAwaitsApproval(t *testing.T) {
	responder := &fakeResponder{reply: "Thanks for asking! The setting lives under preferences."}
	e := NewExecutor(&fakePlatform{}, responder)

	outcome, err := e.Execute(context.Background(), interaction.Interaction{ID: "i1", Text: "where is the setting?"},
		rule.ActionDescriptor{Kind: rule.ActionGenerateResponse, Parameters: map[string]interface{}{"instructions": "be helpful"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success || outcome.Status != interaction.ActionStatusForReview {
		t.Fatalf("a generated response must await approval, got %+v", outcome)
	}
	if outcome.Detail != responder.reply {
		t.Fatalf("the draft must be carried in the outcome detail")
	}
}

func TestExecutePlatformFailure(t *testing.T) {
	platform := &fakePlatform{err: errors.New("rate limited")}
	e := NewExecutor(platform, nil)

	outcome, err := e.Execute(context.Background(), interaction.Interaction{ID: "i1"},
		rule.ActionDescriptor{Kind: rule.ActionArchive})
	if err == nil {
		t.Fatalf("a platform failure must surface as an error")
	}
	if outcome.Success {
		t.Fatalf("a platform failure must not report success")
	}
}

func TestApplyBatchsPersistsOutcome(t *testing.T) {
	repo := interaction.NewMemoryRepository()
	defer interaction.ReplaceGlobals(repo)()

	id, err := repo.Create(interaction.Interaction{Platform: "youtube", Type: interaction.TypeComment, Text: "hello"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	inter, _, err := repo.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	platform := &fakePlatform{}
	e := NewExecutor(platform, nil)
	e.ApplyBatchs([]ActionBatch{
		{Interaction: inter, Descriptor: rule.ActionDescriptor{Kind: rule.ActionAutoRespond,
			Parameters: map[string]interface{}{"message": "thanks!"}}},
	})

	stored, _, _ := repo.Get(id)
	if stored.ActionStatus != interaction.ActionStatusDone {
		t.Fatalf("expected a done action status, got %q", stored.ActionStatus)
	}
	if len(platform.responses) != 1 || platform.responses[0] != "thanks!" {
		t.Fatalf("expected one response, got %v", platform.responses)
	}
}
