package aisessions

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/internal/usage"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

type fakeRepo struct {
	created []models.AISession
	err     error
}

func (f *fakeRepo) WithTx(_ *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(_ context.Context, session *models.AISession) error {
	if f.err != nil {
		return f.err
	}
	session.ID = uuid.New()
	f.created = append(f.created, *session)
	return nil
}

type fakeUsage struct {
	allowErr error
	deltas   []usage.Delta
}

func (f *fakeUsage) Allow(_ context.Context, _ uuid.UUID, _ enums.UsageMetric) error {
	return f.allowErr
}

func (f *fakeUsage) Record(_ context.Context, _ uuid.UUID, delta usage.Delta) error {
	f.deltas = append(f.deltas, delta)
	return nil
}

type fakeGenerator struct {
	output string
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(_ context.Context, _ enums.AISessionKind, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func newTestService(t *testing.T, repo *fakeRepo, gate *fakeUsage, gen *fakeGenerator) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Usage:     gate,
		Generator: gen,
		Logger:    logger.New(logger.Options{ServiceName: "aisessions-test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestGenerate_MetersOneCallAndLogsSession(t *testing.T) {
	repo := &fakeRepo{}
	gate := &fakeUsage{}
	gen := &fakeGenerator{output: "INT. STUDIO - DAY"}
	svc := newTestService(t, repo, gate, gen)
	userID := uuid.New()

	result, err := svc.Generate(context.Background(), userID, GenerateInput{
		Kind:   enums.AISessionKindScript,
		Prompt: "  Write an opening scene.  ",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Output != "INT. STUDIO - DAY" {
		t.Fatalf("unexpected output %q", result.Output)
	}

	if len(gate.deltas) != 1 || gate.deltas[0].AICalls != 1 {
		t.Fatalf("expected exactly one ai_call metered, got %+v", gate.deltas)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one session row, got %d", len(repo.created))
	}
	row := repo.created[0]
	if row.UserID != userID || row.Units != 1 {
		t.Fatalf("unexpected session row %+v", row)
	}
	if row.PromptChars != len("Write an opening scene.") {
		t.Fatalf("prompt chars must count the trimmed prompt, got %d", row.PromptChars)
	}
}

func TestGenerate_BlockedByGateSkipsModelCall(t *testing.T) {
	gate := &fakeUsage{allowErr: pkgerrors.New(pkgerrors.CodeQuotaExceeded, "ai calls exhausted")}
	gen := &fakeGenerator{}
	svc := newTestService(t, &fakeRepo{}, gate, gen)

	_, err := svc.Generate(context.Background(), uuid.New(), GenerateInput{
		Kind:   enums.AISessionKindImage,
		Prompt: "a castle",
	})
	if pkgerrors.Dump(err).Code != pkgerrors.CodeQuotaExceeded {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("blocked call must not reach the model")
	}
	if len(gate.deltas) != 0 {
		t.Fatalf("blocked call must not meter usage")
	}
}

func TestGenerate_ProviderFailureIsNotMetered(t *testing.T) {
	gate := &fakeUsage{}
	gen := &fakeGenerator{err: context.DeadlineExceeded}
	svc := newTestService(t, &fakeRepo{}, gate, gen)

	_, err := svc.Generate(context.Background(), uuid.New(), GenerateInput{
		Kind:   enums.AISessionKindVoiceover,
		Prompt: "warm narration",
	})
	if pkgerrors.Dump(err).Code != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(gate.deltas) != 0 {
		t.Fatalf("failed generation must not meter usage")
	}
}

func TestGenerate_AuditFailureDoesNotFailCall(t *testing.T) {
	repo := &fakeRepo{err: gorm.ErrInvalidData}
	svc := newTestService(t, repo, &fakeUsage{}, &fakeGenerator{output: "ok"})

	result, err := svc.Generate(context.Background(), uuid.New(), GenerateInput{
		Kind:   enums.AISessionKindScript,
		Prompt: "scene two",
	})
	if err != nil {
		t.Fatalf("Generate must tolerate audit failure, got %v", err)
	}
	if result.Output != "ok" {
		t.Fatalf("unexpected output %q", result.Output)
	}
}

func TestGenerate_ValidatesInput(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeUsage{}, &fakeGenerator{})

	if _, err := svc.Generate(context.Background(), uuid.New(), GenerateInput{Kind: "poem", Prompt: "x"}); pkgerrors.Dump(err).Code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for unknown kind, got %v", err)
	}
	if _, err := svc.Generate(context.Background(), uuid.New(), GenerateInput{Kind: enums.AISessionKindScript, Prompt: "   "}); pkgerrors.Dump(err).Code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty prompt, got %v", err)
	}
}
