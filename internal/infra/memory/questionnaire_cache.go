package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"evalform-service/internal/domain"
)

// QuestionnaireLoader fetches the questionnaire dataset from a backing store.
type QuestionnaireLoader interface {
	LoadQuestionnaire(ctx context.Context) (domain.Questionnaire, error)
}

// QuestionnaireCache caches the questionnaire with TTL to avoid re-reading
// four tables on every request. The dataset only changes through the apply
// workflow, so a short TTL is enough.
type QuestionnaireCache struct {
	loader QuestionnaireLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	cached    domain.Questionnaire
	expiresAt time.Time
}

func NewQuestionnaireCache(loader QuestionnaireLoader, ttl time.Duration) *QuestionnaireCache {
	return &QuestionnaireCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionnaireCache) GetQuestionnaire(ctx context.Context) (domain.Questionnaire, error) {
	now := c.clock()

	c.mu.RLock()
	if c.expiresAt.After(now) {
		qn := c.cached
		c.mu.RUnlock()
		return qn, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("questionnaire", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.expiresAt.After(now) {
			qn := c.cached
			c.mu.RUnlock()
			return qn, nil
		}
		c.mu.RUnlock()

		qn, err := c.loader.LoadQuestionnaire(ctx)
		if err != nil {
			return domain.Questionnaire{}, err
		}

		c.mu.Lock()
		c.cached = qn
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return qn, nil
	})
	if err != nil {
		return domain.Questionnaire{}, err
	}
	return result.(domain.Questionnaire), nil
}

// Invalidate drops the cached dataset, used after an applied suggestion.
func (c *QuestionnaireCache) Invalidate() {
	c.mu.Lock()
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *QuestionnaireCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
