package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"evalform-service/internal/domain"
)

type countingLoader struct {
	mu    sync.Mutex
	loads int
	qn    domain.Questionnaire
}

func (l *countingLoader) LoadQuestionnaire(_ context.Context) (domain.Questionnaire, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	return l.qn, nil
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

func TestCacheServesFromMemoryUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{qn: domain.Questionnaire{
		Questions: []domain.Question{{ID: "q1", Step: 1, Type: domain.QuestionText, Title: "Q"}},
	}}
	cache := NewQuestionnaireCache(loader, time.Minute)

	for i := 0; i < 5; i++ {
		qn, err := cache.GetQuestionnaire(ctx)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(qn.Questions) != 1 {
			t.Fatalf("unexpected questionnaire %+v", qn)
		}
	}
	if loader.count() != 1 {
		t.Fatalf("expected one backing load, got %d", loader.count())
	}

	cache.Invalidate()
	if _, err := cache.GetQuestionnaire(ctx); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if loader.count() != 2 {
		t.Fatalf("expected reload after invalidate, got %d", loader.count())
	}
}
