package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"evalform-service/internal/domain"
)

// QuestionnaireLoader reads the questionnaire dataset straight from Postgres
// over a pgx pool; the caching layers sit in front of it.
type QuestionnaireLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionnaireLoader(pool *pgxpool.Pool) *QuestionnaireLoader {
	return &QuestionnaireLoader{pool: pool}
}

func (l *QuestionnaireLoader) LoadQuestionnaire(ctx context.Context) (domain.Questionnaire, error) {
	var qn domain.Questionnaire

	rows, err := l.pool.Query(ctx,
		`SELECT id, step, qtype, title, description, required, options
		 FROM questions ORDER BY step, id`)
	if err != nil {
		return domain.Questionnaire{}, fmt.Errorf("load questions: %w", err)
	}
	byID := make(map[string]int)
	for rows.Next() {
		var (
			q       domain.Question
			qtype   string
			options []byte
		)
		if err := rows.Scan(&q.ID, &q.Step, &qtype, &q.Title, &q.Description, &q.Required, &options); err != nil {
			rows.Close()
			return domain.Questionnaire{}, fmt.Errorf("scan question: %w", err)
		}
		q.Type = domain.QuestionType(qtype)
		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				rows.Close()
				return domain.Questionnaire{}, fmt.Errorf("unmarshal options: %w", err)
			}
		}
		byID[q.ID] = len(qn.Questions)
		qn.Questions = append(qn.Questions, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Questionnaire{}, fmt.Errorf("load questions: %w", err)
	}

	rows, err = l.pool.Query(ctx,
		`SELECT question_id, resource_id FROM question_resources ORDER BY question_id, resource_id`)
	if err != nil {
		return domain.Questionnaire{}, fmt.Errorf("load resource links: %w", err)
	}
	for rows.Next() {
		var questionID, resourceID string
		if err := rows.Scan(&questionID, &resourceID); err != nil {
			rows.Close()
			return domain.Questionnaire{}, fmt.Errorf("scan resource link: %w", err)
		}
		if i, ok := byID[questionID]; ok {
			qn.Questions[i].ResourceIDs = append(qn.Questions[i].ResourceIDs, resourceID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Questionnaire{}, fmt.Errorf("load resource links: %w", err)
	}

	rows, err = l.pool.Query(ctx,
		`SELECT id, kind, title, description, url, created_by, created_at
		 FROM resources ORDER BY created_at, id`)
	if err != nil {
		return domain.Questionnaire{}, fmt.Errorf("load resources: %w", err)
	}
	for rows.Next() {
		var (
			res  domain.Resource
			kind string
		)
		if err := rows.Scan(&res.ID, &kind, &res.Title, &res.Description, &res.URL, &res.CreatedBy, &res.CreatedAt); err != nil {
			rows.Close()
			return domain.Questionnaire{}, fmt.Errorf("scan resource: %w", err)
		}
		res.Kind = domain.ResourceKind(kind)
		qn.Resources = append(qn.Resources, res)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Questionnaire{}, fmt.Errorf("load resources: %w", err)
	}

	rows, err = l.pool.Query(ctx,
		`SELECT id, category, classification, title FROM evaluation_items ORDER BY id`)
	if err != nil {
		return domain.Questionnaire{}, fmt.Errorf("load evaluation items: %w", err)
	}
	for rows.Next() {
		var (
			item  domain.EvaluationItem
			class string
		)
		if err := rows.Scan(&item.ID, &item.Category, &class, &item.Title); err != nil {
			rows.Close()
			return domain.Questionnaire{}, fmt.Errorf("scan evaluation item: %w", err)
		}
		item.Classification = domain.Classification(class)
		qn.Items = append(qn.Items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Questionnaire{}, fmt.Errorf("load evaluation items: %w", err)
	}

	rows, err = l.pool.Query(ctx,
		`SELECT question_id, answer_value, item_id
		 FROM question_mappings ORDER BY question_id, answer_value, item_id`)
	if err != nil {
		return domain.Questionnaire{}, fmt.Errorf("load mappings: %w", err)
	}
	for rows.Next() {
		var m domain.Mapping
		if err := rows.Scan(&m.QuestionID, &m.AnswerValue, &m.EvaluationItemID); err != nil {
			rows.Close()
			return domain.Questionnaire{}, fmt.Errorf("scan mapping: %w", err)
		}
		qn.Mappings = append(qn.Mappings, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Questionnaire{}, fmt.Errorf("load mappings: %w", err)
	}

	return qn, nil
}
