package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"contest-service/internal/domain"
	"contest-service/internal/logger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ContestLoader fetches contest definitions from a backing store (Postgres or Mongo).
type ContestLoader interface {
	LoadContest(ctx context.Context, contestID string) (domain.ContestDefinition, error)
}

// ContestRepository caches contest definitions in Redis and falls back to a
// loader on cache miss. Definitions are stored as JSON under contest:{id}.
type ContestRepository struct {
	client *redis.Client
	loader ContestLoader
	ttl    time.Duration
	log    *logger.Logger
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewContestRepository(client *redis.Client, loader ContestLoader, ttl time.Duration, log *logger.Logger) *ContestRepository {
	if log == nil {
		log = logger.Nop()
	}
	return &ContestRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log.With("component", "contest_cache"),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ContestRepository) GetContest(ctx context.Context, contestID string) (domain.ContestDefinition, error) {
	if c, ok := r.cached(ctx, contestID); ok {
		return c, nil
	}

	result, err, _ := r.sf.Do(contestID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if c, ok := r.cached(ctx, contestID); ok {
			return c, nil
		}

		contest, err := r.loader.LoadContest(ctx, contestID)
		if err != nil {
			return domain.ContestDefinition{}, err
		}

		if data, err := json.Marshal(contest); err == nil {
			if err := r.client.Set(ctx, contestKey(contestID), data, r.ttlWithJitter()).Err(); err != nil {
				r.log.Warn("cache contest failed", "contest_id", contestID, "error", err)
			}
		}
		return contest, nil
	})
	if err != nil {
		return domain.ContestDefinition{}, err
	}
	return result.(domain.ContestDefinition), nil
}

// Invalidate drops the cached definition so the next read reloads it.
func (r *ContestRepository) Invalidate(ctx context.Context, contestID string) error {
	return r.client.Del(ctx, contestKey(contestID)).Err()
}

func (r *ContestRepository) cached(ctx context.Context, contestID string) (domain.ContestDefinition, bool) {
	raw, err := r.client.Get(ctx, contestKey(contestID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("read cached contest failed", "contest_id", contestID, "error", err)
		}
		return domain.ContestDefinition{}, false
	}
	var c domain.ContestDefinition
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.ContestDefinition{}, false
	}
	return c, true
}

func contestKey(contestID string) string {
	return "contest:" + contestID
}

func (r *ContestRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
