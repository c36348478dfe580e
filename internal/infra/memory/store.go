package memory

import (
	"context"
	"sync"
	"time"

	"evalform-service/internal/app"
	"evalform-service/internal/domain"
)

// Store is an in-memory implementation of the app storage interfaces, used in
// tests and for running the service without Postgres. Transactions are
// modeled as copy-on-write: InTx mutates a clone and swaps it in only when
// the callback succeeds.
type Store struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	submissions map[string]domain.Submission // keyed by session code
	questions   map[string]domain.Question
	order       []string // question ids in insertion order
	resources   map[string]domain.Resource
	resOrder    []string
	suggestions map[string]domain.Suggestion
	profiles    map[string]domain.Profile
	items       []domain.EvaluationItem
	mappings    []domain.Mapping
	links       map[string][]string // question id -> resource ids
}

func NewStore() *Store {
	return &Store{state: &state{
		submissions: make(map[string]domain.Submission),
		questions:   make(map[string]domain.Question),
		resources:   make(map[string]domain.Resource),
		suggestions: make(map[string]domain.Suggestion),
		profiles:    make(map[string]domain.Profile),
		links:       make(map[string][]string),
	}}
}

// Seed installs reference data and profiles for tests and local runs.
func (s *Store) Seed(questions []domain.Question, items []domain.EvaluationItem, mappings []domain.Mapping, resources []domain.Resource, profiles []domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		links := q.ResourceIDs
		q.ResourceIDs = nil
		s.state.questions[q.ID] = q
		s.state.order = append(s.state.order, q.ID)
		if len(links) > 0 {
			s.state.links[q.ID] = append([]string(nil), links...)
		}
	}
	for _, r := range resources {
		s.state.resources[r.ID] = r
		s.state.resOrder = append(s.state.resOrder, r.ID)
	}
	for _, p := range profiles {
		s.state.profiles[p.ID] = p
	}
	s.state.items = append(s.state.items, items...)
	s.state.mappings = append(s.state.mappings, mappings...)
}

// --- app.SubmissionStore ---

func (s *Store) InsertSubmission(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.submissions[sub.SessionCode] = cloneSubmission(sub)
	return nil
}

func (s *Store) SubmissionByCode(_ context.Context, code string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.state.submissions[code]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return cloneSubmission(sub), nil
}

func (s *Store) UpdateAnswers(_ context.Context, code string, answers map[string]domain.Answer, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.state.submissions[code]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	sub.Answers = cloneAnswers(answers)
	sub.UpdatedAt = at
	s.state.submissions[code] = sub
	return nil
}

func (s *Store) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.submissions[code]
	return ok, nil
}

// --- questionnaire reads ---

// LoadQuestionnaire satisfies QuestionnaireLoader for the caching layers.
func (s *Store) LoadQuestionnaire(_ context.Context) (domain.Questionnaire, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.questionnaire(), nil
}

// GetQuestionnaire lets the store double as app.QuestionnaireRepository when
// no cache sits in front of it.
func (s *Store) GetQuestionnaire(ctx context.Context) (domain.Questionnaire, error) {
	return s.LoadQuestionnaire(ctx)
}

func (st *state) questionnaire() domain.Questionnaire {
	qn := domain.Questionnaire{}
	for _, id := range st.order {
		q := st.questions[id]
		q.ResourceIDs = append([]string(nil), st.links[id]...)
		qn.Questions = append(qn.Questions, q)
	}
	for _, id := range st.resOrder {
		qn.Resources = append(qn.Resources, st.resources[id])
	}
	qn.Items = append(qn.Items, st.items...)
	qn.Mappings = append(qn.Mappings, st.mappings...)
	return qn
}

// --- app.ReviewStore ---

func (s *Store) Profile(_ context.Context, id string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (s *Store) Suggestion(_ context.Context, id string) (domain.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sug, ok := s.state.suggestions[id]
	if !ok {
		return domain.Suggestion{}, domain.ErrSuggestionNotFound
	}
	return sug, nil
}

func (s *Store) InsertSuggestion(_ context.Context, sug domain.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.suggestions[sug.ID] = sug
	return nil
}

func (s *Store) SuggestionsByStatus(_ context.Context, status domain.SuggestionStatus) ([]domain.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Suggestion
	for _, sug := range s.state.suggestions {
		if sug.Status == status {
			out = append(out, sug)
		}
	}
	return out, nil
}

func (s *Store) InTx(_ context.Context, fn func(tx app.ReviewTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if err := fn(&memTx{state: next}); err != nil {
		return err
	}
	s.state = next
	return nil
}

// memTx mutates a cloned state; the clone is discarded on error.
type memTx struct {
	state *state
}

func (t *memTx) InsertResource(_ context.Context, res domain.Resource) error {
	if _, ok := t.state.resources[res.ID]; !ok {
		t.state.resOrder = append(t.state.resOrder, res.ID)
	}
	t.state.resources[res.ID] = res
	return nil
}

func (t *memTx) InsertQuestion(_ context.Context, q domain.Question) error {
	q.ResourceIDs = nil
	if _, ok := t.state.questions[q.ID]; !ok {
		t.state.order = append(t.state.order, q.ID)
	}
	t.state.questions[q.ID] = q
	return nil
}

func (t *memTx) UpdateQuestion(_ context.Context, q domain.Question) error {
	if _, ok := t.state.questions[q.ID]; !ok {
		return domain.ErrQuestionNotFound
	}
	q.ResourceIDs = nil
	t.state.questions[q.ID] = q
	return nil
}

func (t *memTx) DeleteQuestion(_ context.Context, id string) error {
	if _, ok := t.state.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(t.state.questions, id)
	for i, qid := range t.state.order {
		if qid == id {
			t.state.order = append(t.state.order[:i], t.state.order[i+1:]...)
			break
		}
	}
	t.state.removeMappings(id)
	delete(t.state.links, id)
	return nil
}

func (t *memTx) ReplaceMappings(_ context.Context, questionID string, mappings []domain.Mapping) error {
	t.state.removeMappings(questionID)
	t.state.mappings = append(t.state.mappings, mappings...)
	return nil
}

func (t *memTx) ReplaceResourceLinks(_ context.Context, questionID string, resourceIDs []string) error {
	if len(resourceIDs) == 0 {
		delete(t.state.links, questionID)
		return nil
	}
	t.state.links[questionID] = append([]string(nil), resourceIDs...)
	return nil
}

func (t *memTx) EvaluationItemIDs(_ context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(t.state.items))
	for _, item := range t.state.items {
		ids[item.ID] = struct{}{}
	}
	return ids, nil
}

func (t *memTx) ResolveSuggestion(_ context.Context, id string, status domain.SuggestionStatus, resolvedBy string, at time.Time) (bool, error) {
	sug, ok := t.state.suggestions[id]
	if !ok {
		return false, domain.ErrSuggestionNotFound
	}
	if sug.Status != domain.StatusPending {
		return false, nil
	}
	sug.Status = status
	sug.ResolvedBy = resolvedBy
	sug.ResolvedAt = at
	t.state.suggestions[id] = sug
	return true, nil
}

func (st *state) removeMappings(questionID string) {
	kept := st.mappings[:0]
	for _, m := range st.mappings {
		if m.QuestionID != questionID {
			kept = append(kept, m)
		}
	}
	st.mappings = append([]domain.Mapping(nil), kept...)
}

func (st *state) clone() *state {
	next := &state{
		submissions: make(map[string]domain.Submission, len(st.submissions)),
		questions:   make(map[string]domain.Question, len(st.questions)),
		order:       append([]string(nil), st.order...),
		resources:   make(map[string]domain.Resource, len(st.resources)),
		resOrder:    append([]string(nil), st.resOrder...),
		suggestions: make(map[string]domain.Suggestion, len(st.suggestions)),
		profiles:    make(map[string]domain.Profile, len(st.profiles)),
		items:       append([]domain.EvaluationItem(nil), st.items...),
		mappings:    append([]domain.Mapping(nil), st.mappings...),
		links:       make(map[string][]string, len(st.links)),
	}
	for k, v := range st.submissions {
		next.submissions[k] = v
	}
	for k, v := range st.questions {
		next.questions[k] = v
	}
	for k, v := range st.resources {
		next.resources[k] = v
	}
	for k, v := range st.suggestions {
		next.suggestions[k] = v
	}
	for k, v := range st.profiles {
		next.profiles[k] = v
	}
	for k, v := range st.links {
		next.links[k] = append([]string(nil), v...)
	}
	return next
}

func cloneSubmission(sub domain.Submission) domain.Submission {
	sub.Answers = cloneAnswers(sub.Answers)
	return sub
}

func cloneAnswers(answers map[string]domain.Answer) map[string]domain.Answer {
	out := make(map[string]domain.Answer, len(answers))
	for k, v := range answers {
		v.Values = append([]string(nil), v.Values...)
		out[k] = v
	}
	return out
}
