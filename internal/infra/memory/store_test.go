package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"evalform-service/internal/app"
	"evalform-service/internal/domain"
)

func TestSubmissionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	sub := domain.Submission{
		ID:          "s1",
		SessionCode: "4821",
		UserContext: domain.UserContext{Name: "Alice"},
		Answers:     map[string]domain.Answer{},
	}
	if err := store.InsertSubmission(ctx, sub); err != nil {
		t.Fatalf("insert: %v", err)
	}

	exists, err := store.CodeExists(ctx, "4821")
	if err != nil || !exists {
		t.Fatalf("expected code to exist, got %v/%v", exists, err)
	}

	at := time.Now()
	answers := map[string]domain.Answer{"q1": {Values: []string{"yes"}}}
	if err := store.UpdateAnswers(ctx, "4821", answers, at); err != nil {
		t.Fatalf("update: %v", err)
	}

	loaded, err := store.SubmissionByCode(ctx, "4821")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Answers["q1"].Values[0] != "yes" || !loaded.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected submission %+v", loaded)
	}

	// Mutating the caller's map must not leak into the store.
	answers["q1"] = domain.Answer{Values: []string{"changed"}}
	loaded, _ = store.SubmissionByCode(ctx, "4821")
	if loaded.Answers["q1"].Values[0] != "yes" {
		t.Fatalf("store aliased caller's answers map")
	}

	if _, err := store.SubmissionByCode(ctx, "0000"); err != domain.ErrSubmissionNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.UpdateAnswers(ctx, "0000", nil, at); err != domain.ErrSubmissionNotFound {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.Seed(
		[]domain.Question{{ID: "q1", Step: 1, Type: domain.QuestionText, Title: "Q"}},
		nil, nil, nil, nil,
	)

	err := store.InTx(ctx, func(tx app.ReviewTx) error {
		if err := tx.InsertResource(ctx, domain.Resource{ID: "r1", Kind: domain.ResourceLink, Title: "R"}); err != nil {
			return err
		}
		if err := tx.DeleteQuestion(ctx, "q1"); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}

	qn, _ := store.GetQuestionnaire(ctx)
	if len(qn.Questions) != 1 || len(qn.Resources) != 0 {
		t.Fatalf("expected rollback, got %+v", qn)
	}
}

func TestResolveSuggestionIsConditional(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	sug := domain.Suggestion{
		ID:        "sg1",
		Payload:   domain.DeleteQuestionPayload{QuestionID: "q1"},
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}
	if err := store.InsertSuggestion(ctx, sug); err != nil {
		t.Fatalf("insert: %v", err)
	}

	now := time.Now()
	err := store.InTx(ctx, func(tx app.ReviewTx) error {
		won, err := tx.ResolveSuggestion(ctx, "sg1", domain.StatusApproved, "admin-1", now)
		if err != nil || !won {
			t.Fatalf("expected first resolve to win, got %v/%v", won, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	err = store.InTx(ctx, func(tx app.ReviewTx) error {
		won, err := tx.ResolveSuggestion(ctx, "sg1", domain.StatusRejected, "admin-2", now)
		if err != nil {
			return err
		}
		if won {
			t.Fatalf("expected second resolve to lose")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	final, _ := store.Suggestion(ctx, "sg1")
	if final.Status != domain.StatusApproved || final.ResolvedBy != "admin-1" {
		t.Fatalf("expected first resolution to stick, got %+v", final)
	}
}
