package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"evalform-service/internal/app"
	"evalform-service/internal/domain"
)

// Store implements the app storage interfaces on top of bun/Postgres. The
// apply workflow's multi-table writes run inside a single database
// transaction via InTx.
type Store struct {
	db *bun.DB
	queries
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, queries: queries{db: db}}
}

// queries holds the statements shared between the store and its
// transactional view; db is either *bun.DB or bun.Tx.
type queries struct {
	db bun.IDB
}

// --- app.SubmissionStore ---

func (q queries) InsertSubmission(ctx context.Context, sub domain.Submission) error {
	row, err := submissionToRow(sub)
	if err != nil {
		return err
	}
	if _, err := q.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (q queries) SubmissionByCode(ctx context.Context, code string) (domain.Submission, error) {
	var row submissionRow
	err := q.db.NewSelect().Model(&row).Where("session_code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("select submission: %w", err)
	}
	return submissionFromRow(row)
}

func (q queries) UpdateAnswers(ctx context.Context, code string, answers map[string]domain.Answer, at time.Time) error {
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	res, err := q.db.NewUpdate().
		Model((*submissionRow)(nil)).
		Set("answers = ?", string(raw)).
		Set("updated_at = ?", at).
		Where("session_code = ?", code).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update answers: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}

func (q queries) CodeExists(ctx context.Context, code string) (bool, error) {
	n, err := q.db.NewSelect().
		Model((*submissionRow)(nil)).
		Where("session_code = ?", code).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count session code: %w", err)
	}
	return n > 0, nil
}

// --- app.ReviewStore ---

func (q queries) Profile(ctx context.Context, id string) (domain.Profile, error) {
	var row profileRow
	err := q.db.NewSelect().Model(&row).Where("p.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return domain.Profile{ID: row.ID, Name: row.Name, Admin: row.Admin}, nil
}

func (q queries) Suggestion(ctx context.Context, id string) (domain.Suggestion, error) {
	var row suggestionRow
	err := q.db.NewSelect().Model(&row).Where("sg.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Suggestion{}, domain.ErrSuggestionNotFound
	}
	if err != nil {
		return domain.Suggestion{}, fmt.Errorf("select suggestion: %w", err)
	}
	return suggestionFromRow(row)
}

func (q queries) InsertSuggestion(ctx context.Context, sug domain.Suggestion) error {
	row, err := suggestionToRow(sug)
	if err != nil {
		return err
	}
	if _, err := q.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert suggestion: %w", err)
	}
	return nil
}

func (q queries) SuggestionsByStatus(ctx context.Context, status domain.SuggestionStatus) ([]domain.Suggestion, error) {
	var rows []suggestionRow
	err := q.db.NewSelect().
		Model(&rows).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select suggestions: %w", err)
	}
	out := make([]domain.Suggestion, 0, len(rows))
	for _, row := range rows {
		sug, err := suggestionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, sug)
	}
	return out, nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx app.ReviewTx) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(queries{db: tx})
	})
}

// --- app.ReviewTx ---

func (q queries) InsertResource(ctx context.Context, res domain.Resource) error {
	row := resourceRow{
		ID:          res.ID,
		Kind:        string(res.Kind),
		Title:       res.Title,
		Description: res.Description,
		URL:         res.URL,
		CreatedBy:   res.CreatedBy,
		CreatedAt:   res.CreatedAt,
	}
	if _, err := q.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

func (q queries) InsertQuestion(ctx context.Context, question domain.Question) error {
	row, err := questionToRow(question)
	if err != nil {
		return err
	}
	if _, err := q.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (q queries) UpdateQuestion(ctx context.Context, question domain.Question) error {
	row, err := questionToRow(question)
	if err != nil {
		return err
	}
	res, err := q.db.NewUpdate().Model(&row).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (q queries) DeleteQuestion(ctx context.Context, id string) error {
	// Mappings and links are removed explicitly so the logical operation does
	// not depend on schema-level cascades.
	if err := q.ReplaceMappings(ctx, id, nil); err != nil {
		return err
	}
	if err := q.ReplaceResourceLinks(ctx, id, nil); err != nil {
		return err
	}
	res, err := q.db.NewDelete().Model((*questionRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (q queries) ReplaceMappings(ctx context.Context, questionID string, mappings []domain.Mapping) error {
	if _, err := q.db.NewDelete().
		Model((*mappingRow)(nil)).
		Where("question_id = ?", questionID).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete mappings: %w", err)
	}
	if len(mappings) == 0 {
		return nil
	}
	rows := make([]mappingRow, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, mappingRow{
			QuestionID:  m.QuestionID,
			AnswerValue: m.AnswerValue,
			ItemID:      m.EvaluationItemID,
		})
	}
	if _, err := q.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("insert mappings: %w", err)
	}
	return nil
}

func (q queries) ReplaceResourceLinks(ctx context.Context, questionID string, resourceIDs []string) error {
	if _, err := q.db.NewDelete().
		Model((*resourceLinkRow)(nil)).
		Where("question_id = ?", questionID).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete resource links: %w", err)
	}
	if len(resourceIDs) == 0 {
		return nil
	}
	rows := make([]resourceLinkRow, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		rows = append(rows, resourceLinkRow{QuestionID: questionID, ResourceID: id})
	}
	if _, err := q.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("insert resource links: %w", err)
	}
	return nil
}

func (q queries) EvaluationItemIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	err := q.db.NewSelect().
		Model((*evaluationItemRow)(nil)).
		Column("id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("select evaluation item ids: %w", err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (q queries) ResolveSuggestion(ctx context.Context, id string, status domain.SuggestionStatus, resolvedBy string, at time.Time) (bool, error) {
	res, err := q.db.NewUpdate().
		Model((*suggestionRow)(nil)).
		Set("status = ?", string(status)).
		Set("resolved_by = ?", resolvedBy).
		Set("resolved_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", string(domain.StatusPending)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("resolve suggestion: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// --- seeding (migrate/seed CLI) ---

// SeedReferenceData upserts evaluation items, questions with their mappings,
// and profiles; used by the seed command for fresh environments.
func (s *Store) SeedReferenceData(ctx context.Context, items []domain.EvaluationItem, questions []domain.Question, mappings []domain.Mapping, profiles []domain.Profile) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := queries{db: tx}
		for _, item := range items {
			row := evaluationItemRow{
				ID:             item.ID,
				Category:       item.Category,
				Classification: string(item.Classification),
				Title:          item.Title,
			}
			if _, err := tx.NewInsert().Model(&row).On("CONFLICT (id) DO UPDATE").
				Set("category = EXCLUDED.category").
				Set("classification = EXCLUDED.classification").
				Set("title = EXCLUDED.title").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert evaluation item: %w", err)
			}
		}
		byQuestion := make(map[string][]domain.Mapping)
		for _, m := range mappings {
			byQuestion[m.QuestionID] = append(byQuestion[m.QuestionID], m)
		}
		for _, question := range questions {
			links := question.ResourceIDs
			row, err := questionToRow(question)
			if err != nil {
				return err
			}
			if _, err := tx.NewInsert().Model(&row).On("CONFLICT (id) DO UPDATE").
				Set("step = EXCLUDED.step").
				Set("qtype = EXCLUDED.qtype").
				Set("title = EXCLUDED.title").
				Set("description = EXCLUDED.description").
				Set("required = EXCLUDED.required").
				Set("options = EXCLUDED.options").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert question: %w", err)
			}
			if err := q.ReplaceMappings(ctx, question.ID, byQuestion[question.ID]); err != nil {
				return err
			}
			if err := q.ReplaceResourceLinks(ctx, question.ID, links); err != nil {
				return err
			}
		}
		for _, profile := range profiles {
			row := profileRow{ID: profile.ID, Name: profile.Name, Admin: profile.Admin}
			if _, err := tx.NewInsert().Model(&row).On("CONFLICT (id) DO UPDATE").
				Set("name = EXCLUDED.name").
				Set("admin = EXCLUDED.admin").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert profile: %w", err)
			}
		}
		return nil
	})
}

// --- row conversions ---

func submissionToRow(sub domain.Submission) (submissionRow, error) {
	userCtx, err := json.Marshal(sub.UserContext)
	if err != nil {
		return submissionRow{}, fmt.Errorf("marshal user context: %w", err)
	}
	answers := sub.Answers
	if answers == nil {
		answers = map[string]domain.Answer{}
	}
	rawAnswers, err := json.Marshal(answers)
	if err != nil {
		return submissionRow{}, fmt.Errorf("marshal answers: %w", err)
	}
	return submissionRow{
		ID:          sub.ID,
		SessionCode: sub.SessionCode,
		UserContext: userCtx,
		Answers:     rawAnswers,
		CreatedAt:   sub.CreatedAt,
		UpdatedAt:   sub.UpdatedAt,
	}, nil
}

func submissionFromRow(row submissionRow) (domain.Submission, error) {
	sub := domain.Submission{
		ID:          row.ID,
		SessionCode: row.SessionCode,
		Answers:     map[string]domain.Answer{},
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if len(row.UserContext) > 0 {
		if err := json.Unmarshal(row.UserContext, &sub.UserContext); err != nil {
			return domain.Submission{}, fmt.Errorf("unmarshal user context: %w", err)
		}
	}
	if len(row.Answers) > 0 {
		if err := json.Unmarshal(row.Answers, &sub.Answers); err != nil {
			return domain.Submission{}, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return sub, nil
}

func questionToRow(q domain.Question) (questionRow, error) {
	options := q.Options
	if options == nil {
		options = []domain.Option{}
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return questionRow{}, fmt.Errorf("marshal options: %w", err)
	}
	return questionRow{
		ID:          q.ID,
		Step:        q.Step,
		Type:        string(q.Type),
		Title:       q.Title,
		Description: q.Description,
		Required:    q.Required,
		Options:     raw,
	}, nil
}

func questionFromRow(row questionRow) (domain.Question, error) {
	q := domain.Question{
		ID:          row.ID,
		Step:        row.Step,
		Type:        domain.QuestionType(row.Type),
		Title:       row.Title,
		Description: row.Description,
		Required:    row.Required,
	}
	if len(row.Options) > 0 {
		if err := json.Unmarshal(row.Options, &q.Options); err != nil {
			return domain.Question{}, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	return q, nil
}

func suggestionToRow(sug domain.Suggestion) (suggestionRow, error) {
	payload, err := domain.EncodeSuggestionPayload(sug.Payload)
	if err != nil {
		return suggestionRow{}, err
	}
	row := suggestionRow{
		ID:         sug.ID,
		Kind:       string(sug.Payload.Kind()),
		TargetID:   sug.TargetID,
		Payload:    payload,
		Comment:    sug.Comment,
		Status:     string(sug.Status),
		ResolvedBy: sug.ResolvedBy,
		CreatedAt:  sug.CreatedAt,
	}
	if !sug.ResolvedAt.IsZero() {
		t := sug.ResolvedAt
		row.ResolvedAt = &t
	}
	return row, nil
}

func suggestionFromRow(row suggestionRow) (domain.Suggestion, error) {
	payload, err := domain.DecodeSuggestionPayload(domain.SuggestionKind(row.Kind), row.Payload)
	if err != nil {
		return domain.Suggestion{}, err
	}
	sug := domain.Suggestion{
		ID:         row.ID,
		TargetID:   row.TargetID,
		Payload:    payload,
		Comment:    row.Comment,
		Status:     domain.SuggestionStatus(row.Status),
		ResolvedBy: row.ResolvedBy,
		CreatedAt:  row.CreatedAt,
	}
	if row.ResolvedAt != nil {
		sug.ResolvedAt = *row.ResolvedAt
	}
	return sug, nil
}
