package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"evalform-service/internal/domain"
)

// ReviewStore exposes the moderation queue and the transactional view used to
// apply an approved suggestion.
type ReviewStore interface {
	Profile(ctx context.Context, id string) (domain.Profile, error)
	Suggestion(ctx context.Context, id string) (domain.Suggestion, error)
	InsertSuggestion(ctx context.Context, sug domain.Suggestion) error
	SuggestionsByStatus(ctx context.Context, status domain.SuggestionStatus) ([]domain.Suggestion, error)
	// InTx runs fn against a transactional view; any error rolls back every
	// write fn performed.
	InTx(ctx context.Context, fn func(tx ReviewTx) error) error
}

// ReviewTx is the mutation surface available inside an apply transaction.
type ReviewTx interface {
	InsertResource(ctx context.Context, res domain.Resource) error
	InsertQuestion(ctx context.Context, q domain.Question) error
	UpdateQuestion(ctx context.Context, q domain.Question) error
	DeleteQuestion(ctx context.Context, id string) error
	ReplaceMappings(ctx context.Context, questionID string, mappings []domain.Mapping) error
	ReplaceResourceLinks(ctx context.Context, questionID string, resourceIDs []string) error
	EvaluationItemIDs(ctx context.Context) (map[string]struct{}, error)
	// ResolveSuggestion conditionally transitions status away from pending and
	// reports whether this caller won the transition.
	ResolveSuggestion(ctx context.Context, id string, status domain.SuggestionStatus, resolvedBy string, at time.Time) (bool, error)
}

// ReviewService implements the suggestion review workflow: intake, queue
// listing, and the admin-gated apply/reject operations.
type ReviewService struct {
	store ReviewStore
	clock func() time.Time
	newID func() string
}

func NewReviewService(store ReviewStore) *ReviewService {
	return &ReviewService{store: store, clock: time.Now, newID: uuid.NewString}
}

// NewReviewServiceWithClock is test-only for deterministic timestamps.
func NewReviewServiceWithClock(store ReviewStore, now func() time.Time) *ReviewService {
	s := NewReviewService(store)
	s.clock = now
	return s
}

// CreateSuggestion records a pending proposal from any user.
func (s *ReviewService) CreateSuggestion(ctx context.Context, payload domain.SuggestionPayload, comment string) (domain.Suggestion, error) {
	if payload == nil {
		return domain.Suggestion{}, fmt.Errorf("suggestion payload required")
	}
	sug := domain.Suggestion{
		ID:        s.newID(),
		TargetID:  targetOf(payload),
		Payload:   payload,
		Comment:   comment,
		Status:    domain.StatusPending,
		CreatedAt: s.clock(),
	}
	if err := s.store.InsertSuggestion(ctx, sug); err != nil {
		return domain.Suggestion{}, fmt.Errorf("insert suggestion: %w", err)
	}
	return sug, nil
}

// SuggestionsByStatus lists the moderation queue for an admin caller.
func (s *ReviewService) SuggestionsByStatus(ctx context.Context, callerID string, status domain.SuggestionStatus) ([]domain.Suggestion, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	return s.store.SuggestionsByStatus(ctx, status)
}

// Apply approves a pending suggestion and materializes its payload into the
// live tables as one transaction. Concurrent applies race on the conditional
// status update; the loser sees domain.ErrAlreadyProcessed and no writes.
func (s *ReviewService) Apply(ctx context.Context, callerID, suggestionID string) error {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return err
	}
	sug, err := s.store.Suggestion(ctx, suggestionID)
	if err != nil {
		return err
	}
	if sug.Status != domain.StatusPending {
		return domain.ErrAlreadyProcessed
	}

	now := s.clock()
	return s.store.InTx(ctx, func(tx ReviewTx) error {
		switch payload := sug.Payload.(type) {
		case domain.AddResourcePayload:
			res := payload.Resource
			if res.ID == "" {
				res.ID = s.newID()
			}
			res.CreatedBy = callerID
			res.CreatedAt = now
			if err := tx.InsertResource(ctx, res); err != nil {
				return fmt.Errorf("insert resource: %w", err)
			}
		case domain.AddQuestionPayload:
			if err := s.applyQuestion(ctx, tx, payload.Question, payload.NewResources, payload.ResourceIDs, callerID, now, true); err != nil {
				return err
			}
		case domain.EditQuestionPayload:
			q := payload.Question
			q.ID = payload.QuestionID
			if err := s.applyQuestion(ctx, tx, q, payload.NewResources, payload.ResourceIDs, callerID, now, false); err != nil {
				return err
			}
		case domain.DeleteQuestionPayload:
			if err := tx.DeleteQuestion(ctx, payload.QuestionID); err != nil {
				return fmt.Errorf("delete question: %w", err)
			}
		default:
			return fmt.Errorf("unknown suggestion payload %T", payload)
		}

		won, err := tx.ResolveSuggestion(ctx, sug.ID, domain.StatusApproved, callerID, now)
		if err != nil {
			return fmt.Errorf("resolve suggestion: %w", err)
		}
		if !won {
			return domain.ErrAlreadyProcessed
		}
		return nil
	})
}

// Reject closes a pending suggestion without touching the live tables.
func (s *ReviewService) Reject(ctx context.Context, callerID, suggestionID string) error {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return err
	}
	sug, err := s.store.Suggestion(ctx, suggestionID)
	if err != nil {
		return err
	}
	if sug.Status != domain.StatusPending {
		return domain.ErrAlreadyProcessed
	}

	now := s.clock()
	return s.store.InTx(ctx, func(tx ReviewTx) error {
		won, err := tx.ResolveSuggestion(ctx, sug.ID, domain.StatusRejected, callerID, now)
		if err != nil {
			return fmt.Errorf("resolve suggestion: %w", err)
		}
		if !won {
			return domain.ErrAlreadyProcessed
		}
		return nil
	})
}

// applyQuestion performs the shared add/edit path: create the payload's new
// resources, write the question with recommendations stripped, then fully
// replace its mappings and resource links.
func (s *ReviewService) applyQuestion(ctx context.Context, tx ReviewTx, q domain.Question, newResources []domain.Resource, resourceIDs []string, callerID string, now time.Time, insert bool) error {
	itemIDs, err := tx.EvaluationItemIDs(ctx)
	if err != nil {
		return fmt.Errorf("load evaluation items: %w", err)
	}
	for _, opt := range q.Options {
		for _, id := range opt.EvaluationItemIDs {
			if _, ok := itemIDs[id]; !ok {
				return fmt.Errorf("%w: %s", domain.ErrDanglingEvaluationItem, id)
			}
		}
	}

	linked := make([]string, 0, len(resourceIDs)+len(newResources))
	seenLinks := make(map[string]struct{})
	for _, res := range newResources {
		if res.ID == "" {
			res.ID = s.newID()
		}
		res.CreatedBy = callerID
		res.CreatedAt = now
		if err := tx.InsertResource(ctx, res); err != nil {
			return fmt.Errorf("insert resource: %w", err)
		}
		if _, dup := seenLinks[res.ID]; !dup {
			seenLinks[res.ID] = struct{}{}
			linked = append(linked, res.ID)
		}
	}
	for _, id := range resourceIDs {
		if _, dup := seenLinks[id]; !dup {
			seenLinks[id] = struct{}{}
			linked = append(linked, id)
		}
	}

	var mappings []domain.Mapping
	stripped := make([]domain.Option, len(q.Options))
	for i, opt := range q.Options {
		for _, itemID := range opt.EvaluationItemIDs {
			mappings = append(mappings, domain.Mapping{
				QuestionID:       q.ID,
				AnswerValue:      opt.Value,
				EvaluationItemID: itemID,
			})
		}
		stripped[i] = domain.Option{Label: opt.Label, Value: opt.Value}
	}
	q.Options = stripped
	q.ResourceIDs = linked

	if insert {
		if q.ID == "" {
			q.ID = s.newID()
			for i := range mappings {
				mappings[i].QuestionID = q.ID
			}
		}
		if err := tx.InsertQuestion(ctx, q); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	} else {
		if err := tx.UpdateQuestion(ctx, q); err != nil {
			return fmt.Errorf("update question: %w", err)
		}
	}

	if err := tx.ReplaceMappings(ctx, q.ID, mappings); err != nil {
		return fmt.Errorf("replace mappings: %w", err)
	}
	if err := tx.ReplaceResourceLinks(ctx, q.ID, linked); err != nil {
		return fmt.Errorf("replace resource links: %w", err)
	}
	return nil
}

// CreateResource lets an admin add a resource directly, outside the queue.
func (s *ReviewService) CreateResource(ctx context.Context, callerID string, res domain.Resource) (domain.Resource, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return domain.Resource{}, err
	}
	if res.ID == "" {
		res.ID = s.newID()
	}
	res.CreatedBy = callerID
	res.CreatedAt = s.clock()
	err := s.store.InTx(ctx, func(tx ReviewTx) error {
		return tx.InsertResource(ctx, res)
	})
	if err != nil {
		return domain.Resource{}, fmt.Errorf("insert resource: %w", err)
	}
	return res, nil
}

func (s *ReviewService) requireAdmin(ctx context.Context, callerID string) error {
	profile, err := s.store.Profile(ctx, callerID)
	if err != nil {
		// Unknown callers get the same answer as known non-admins.
		if err == domain.ErrProfileNotFound {
			return domain.ErrPermissionDenied
		}
		return fmt.Errorf("load profile: %w", err)
	}
	if !profile.Admin {
		return domain.ErrPermissionDenied
	}
	return nil
}

func targetOf(payload domain.SuggestionPayload) string {
	switch p := payload.(type) {
	case domain.EditQuestionPayload:
		return p.QuestionID
	case domain.DeleteQuestionPayload:
		return p.QuestionID
	default:
		return ""
	}
}
