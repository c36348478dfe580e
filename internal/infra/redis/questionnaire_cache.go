package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"evalform-service/internal/domain"
)

const questionnaireKey = "evalform:questionnaire"

// QuestionnaireLoader fetches the questionnaire dataset from a backing store.
type QuestionnaireLoader interface {
	LoadQuestionnaire(ctx context.Context) (domain.Questionnaire, error)
}

// QuestionnaireCache keeps the questionnaire as a single JSON blob in Redis
// so multiple service instances share one cached copy, falling back to the
// loader on a miss.
type QuestionnaireCache struct {
	client *redis.Client
	loader QuestionnaireLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionnaireCache(client *redis.Client, loader QuestionnaireLoader, ttl time.Duration) *QuestionnaireCache {
	return &QuestionnaireCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionnaireCache) GetQuestionnaire(ctx context.Context) (domain.Questionnaire, error) {
	if qn, ok := c.fromCache(ctx); ok {
		return qn, nil
	}

	result, err, _ := c.sf.Do(questionnaireKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if qn, ok := c.fromCache(ctx); ok {
			return qn, nil
		}

		qn, err := c.loader.LoadQuestionnaire(ctx)
		if err != nil {
			return domain.Questionnaire{}, err
		}

		raw, err := json.Marshal(qn)
		if err != nil {
			return domain.Questionnaire{}, fmt.Errorf("marshal questionnaire: %w", err)
		}
		// best-effort: a failed SET only costs the next caller a reload
		_ = c.client.Set(ctx, questionnaireKey, raw, c.ttlWithJitter()).Err()
		return qn, nil
	})
	if err != nil {
		return domain.Questionnaire{}, err
	}
	return result.(domain.Questionnaire), nil
}

// Invalidate drops the shared cache entry, used after an applied suggestion.
func (c *QuestionnaireCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, questionnaireKey).Err()
}

func (c *QuestionnaireCache) fromCache(ctx context.Context) (domain.Questionnaire, bool) {
	raw, err := c.client.Get(ctx, questionnaireKey).Bytes()
	if err != nil {
		return domain.Questionnaire{}, false
	}
	var qn domain.Questionnaire
	if err := json.Unmarshal(raw, &qn); err != nil {
		return domain.Questionnaire{}, false
	}
	return qn, true
}

func (c *QuestionnaireCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
