package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"evalform-service/internal/domain"
)

// SubmissionStore persists questionnaire sessions (Postgres, in-memory, etc).
type SubmissionStore interface {
	InsertSubmission(ctx context.Context, sub domain.Submission) error
	SubmissionByCode(ctx context.Context, code string) (domain.Submission, error)
	UpdateAnswers(ctx context.Context, code string, answers map[string]domain.Answer, at time.Time) error
	CodeExists(ctx context.Context, code string) (bool, error)
}

// QuestionnaireRepository loads the read-side dataset (from cache/backing store).
type QuestionnaireRepository interface {
	GetQuestionnaire(ctx context.Context) (domain.Questionnaire, error)
}

// maxCodeAttempts bounds the rejection sampling for session codes; with 10k
// possible codes the limit only trips when the space is nearly full.
const maxCodeAttempts = 100

// SessionService drives a user's path through the questionnaire: start,
// resume by code, autosave, finish with an evaluation summary.
type SessionService struct {
	submissions   SubmissionStore
	questionnaire QuestionnaireRepository
	rnd           *rand.Rand
	clock         func() time.Time
	newID         func() string
}

func NewSessionService(submissions SubmissionStore, questionnaire QuestionnaireRepository) *SessionService {
	return &SessionService{
		submissions:   submissions,
		questionnaire: questionnaire,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
		clock:         time.Now,
		newID:         uuid.NewString,
	}
}

// NewSessionServiceWithClock is test-only for deterministic ids and times.
func NewSessionServiceWithClock(submissions SubmissionStore, questionnaire QuestionnaireRepository, seed int64, now func() time.Time) *SessionService {
	s := NewSessionService(submissions, questionnaire)
	s.rnd = rand.New(rand.NewSource(seed))
	s.clock = now
	return s
}

// Start creates a fresh submission with empty answers under a newly
// generated, collision-free 4-digit session code.
func (s *SessionService) Start(ctx context.Context, user domain.UserContext) (domain.Submission, error) {
	code, err := s.generateCode(ctx)
	if err != nil {
		return domain.Submission{}, err
	}

	now := s.clock()
	sub := domain.Submission{
		ID:          s.newID(),
		SessionCode: code,
		UserContext: user,
		Answers:     make(map[string]domain.Answer),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.submissions.InsertSubmission(ctx, sub); err != nil {
		return domain.Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return sub, nil
}

// Resume loads the submission stored under code, restoring answers and user
// context. Returns domain.ErrSubmissionNotFound for unknown codes.
func (s *SessionService) Resume(ctx context.Context, code string) (domain.Submission, error) {
	return s.submissions.SubmissionByCode(ctx, code)
}

// SaveAnswers persists the current answers for a session, last write wins.
func (s *SessionService) SaveAnswers(ctx context.Context, code string, answers map[string]domain.Answer) error {
	return s.submissions.UpdateAnswers(ctx, code, answers, s.clock())
}

// Finish saves the final answers synchronously and computes the evaluation
// summary. The session is terminal afterwards; the submission row remains.
func (s *SessionService) Finish(ctx context.Context, code string, answers map[string]domain.Answer) (domain.EvaluationSummary, error) {
	if err := s.SaveAnswers(ctx, code, answers); err != nil {
		return domain.EvaluationSummary{}, err
	}
	qn, err := s.questionnaire.GetQuestionnaire(ctx)
	if err != nil {
		return domain.EvaluationSummary{}, fmt.Errorf("load questionnaire: %w", err)
	}
	return Aggregate(answers, qn.Mappings, qn.Items), nil
}

// Preview aggregates answers without touching any submission, for reviewers
// walking the question flow. Required-field gating does not apply here.
func (s *SessionService) Preview(ctx context.Context, answers map[string]domain.Answer) (domain.EvaluationSummary, error) {
	qn, err := s.questionnaire.GetQuestionnaire(ctx)
	if err != nil {
		return domain.EvaluationSummary{}, fmt.Errorf("load questionnaire: %w", err)
	}
	return Aggregate(answers, qn.Mappings, qn.Items), nil
}

// ValidateStep gates step navigation on the step's required questions.
func (s *SessionService) ValidateStep(ctx context.Context, step int, answers map[string]domain.Answer) error {
	qn, err := s.questionnaire.GetQuestionnaire(ctx)
	if err != nil {
		return fmt.Errorf("load questionnaire: %w", err)
	}
	return ValidateStep(qn.Questions, step, answers)
}

// generateCode rejection-samples 4-digit codes until one is unused.
func (s *SessionService) generateCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := fmt.Sprintf("%04d", s.rnd.Intn(10000))
		taken, err := s.submissions.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check session code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", domain.ErrCodeSpaceExhausted
}
