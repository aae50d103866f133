package repository

import (
	"context"
	"errors"
	"testing"

	"mailtriage/internal/model"
)

func TestMemoryRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRunRepository()
	email := model.Email{ID: "e-1"}
	st := &model.RunState{RunID: "r-1", EmailID: "e-1", Status: model.RunRunning}

	if err := repo.Create(ctx, st, email); err != nil {
		t.Fatalf("Create: %v", err)
	}
	st.Status = model.RunCompleted
	if err := repo.Save(ctx, st, email); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	other := &model.RunState{RunID: "r-2", EmailID: "e-1"}
	if err := repo.Save(ctx, other, email); !errors.Is(err, ErrRunExists) {
		t.Errorf("second run err = %v, want ErrRunExists", err)
	}
	if err := repo.Create(ctx, other, email); !errors.Is(err, ErrRunExists) {
		t.Errorf("second claim err = %v, want ErrRunExists", err)
	}
	st.Status = model.RunFailed
	if err := repo.Save(ctx, st, email); !errors.Is(err, ErrRunFinished) {
		t.Errorf("overwrite finished err = %v, want ErrRunFinished", err)
	}
	st.Status = model.RunCompleted

	got, gotEmail, err := repo.Get(ctx, "r-1")
	if err != nil || got.Status != model.RunCompleted || gotEmail.ID != "e-1" {
		t.Errorf("Get = %+v, %+v, %v", got, gotEmail, err)
	}
	got.Status = model.RunFailed
	again, _, _ := repo.GetByEmail(ctx, "e-1")
	if again.Status != model.RunCompleted {
		t.Error("stored state shared with caller")
	}

	if _, _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}

	done, err := repo.ListByStatus(ctx, model.RunCompleted, 10)
	if err != nil || len(done) != 1 {
		t.Errorf("ListByStatus = %d, %v", len(done), err)
	}
}

func TestMemoryDraftRepository_OnlyPassed(t *testing.T) {
	repo := NewMemoryDraftRepository()
	ctx := context.Background()

	if err := repo.SaveDraft(ctx, model.DraftReply{GuardrailStatus: model.GuardrailRejected}); !errors.Is(err, ErrDraftNotPassed) {
		t.Errorf("err = %v, want ErrDraftNotPassed", err)
	}
	if err := repo.SaveDraft(ctx, model.DraftReply{EmailID: "e-1", GuardrailStatus: model.GuardrailPassed}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if n := len(repo.Drafts()); n != 1 {
		t.Errorf("drafts = %d, want 1", n)
	}
}
