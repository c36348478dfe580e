package app

import (
	"strings"

	"evalform-service/internal/domain"
)

// Aggregate folds a submission's answers through the answer-value mappings
// into the six fixed classification buckets plus the deduplicated key-aspect
// categories. Pure: identical inputs always yield identical output. Bucket
// order follows domain.Classifications; order within a bucket follows mapping
// order.
func Aggregate(answers map[string]domain.Answer, mappings []domain.Mapping, items []domain.EvaluationItem) domain.EvaluationSummary {
	itemsByID := make(map[string]domain.EvaluationItem, len(items))
	for _, item := range items {
		itemsByID[item.ID] = item
	}

	buckets := make(map[domain.Classification][]domain.EvaluationItem)
	seen := make(map[domain.Classification]map[string]struct{})
	var aspects []string
	seenAspects := make(map[string]struct{})

	// Iterate mappings, not the answers map, so output order does not depend
	// on Go map iteration.
	for _, m := range mappings {
		answer, ok := answers[m.QuestionID]
		if !ok || !answerContains(answer, m.AnswerValue) {
			continue
		}
		item, ok := itemsByID[m.EvaluationItemID]
		if !ok {
			continue
		}
		if seen[item.Classification] == nil {
			seen[item.Classification] = make(map[string]struct{})
		}
		if _, dup := seen[item.Classification][item.ID]; dup {
			continue
		}
		seen[item.Classification][item.ID] = struct{}{}
		buckets[item.Classification] = append(buckets[item.Classification], item)

		if _, dup := seenAspects[item.Category]; !dup {
			seenAspects[item.Category] = struct{}{}
			aspects = append(aspects, item.Category)
		}
	}

	summary := domain.EvaluationSummary{KeyAspects: aspects}
	for _, class := range domain.Classifications {
		summary.Buckets = append(summary.Buckets, domain.Bucket{
			Classification: class,
			Items:          buckets[class],
		})
	}
	return summary
}

func answerContains(answer domain.Answer, value string) bool {
	for _, v := range answer.Values {
		if v == value {
			return true
		}
	}
	return false
}

// ValidateStep checks the required-question gate for one step: scalar types
// need a non-empty trimmed value, multi-select types a non-empty collection.
// Returns *domain.ValidationError listing the unanswered question ids.
func ValidateStep(questions []domain.Question, step int, answers map[string]domain.Answer) error {
	var missing []string
	for _, q := range questions {
		if q.Step != step || !q.Required {
			continue
		}
		if !answered(q, answers[q.ID]) {
			missing = append(missing, q.ID)
		}
	}
	if len(missing) > 0 {
		return &domain.ValidationError{Step: step, Missing: missing}
	}
	return nil
}

func answered(q domain.Question, answer domain.Answer) bool {
	if q.Type.Multi() {
		return len(answer.Values) > 0
	}
	return len(answer.Values) > 0 && strings.TrimSpace(answer.Values[0]) != ""
}
