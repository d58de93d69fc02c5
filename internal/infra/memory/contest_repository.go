package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ContestLoader fetches contest definitions from a backing store.
type ContestLoader interface {
	LoadContest(ctx context.Context, contestID string) (domain.ContestDefinition, error)
}

// ContestRepository caches contest definitions with TTL to avoid repeated DB hits.
type ContestRepository struct {
	loader ContestLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedContest
}

type cachedContest struct {
	contest   domain.ContestDefinition
	expiresAt time.Time
}

func NewContestRepository(loader ContestLoader, ttl time.Duration) *ContestRepository {
	return &ContestRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedContest),
	}
}

func (r *ContestRepository) GetContest(ctx context.Context, contestID string) (domain.ContestDefinition, error) {
	if c, ok := r.cached(contestID); ok {
		return c, nil
	}

	result, err, _ := r.sf.Do(contestID, func() (interface{}, error) {
		if c, ok := r.cached(contestID); ok {
			return c, nil
		}

		contest, err := r.loader.LoadContest(ctx, contestID)
		if err != nil {
			return domain.ContestDefinition{}, err
		}

		r.mu.Lock()
		r.cache[contestID] = cachedContest{
			contest:   contest,
			expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return contest, nil
	})
	if err != nil {
		return domain.ContestDefinition{}, err
	}
	return result.(domain.ContestDefinition), nil
}

// Invalidate drops a cached definition, e.g. after an import bumped its version.
func (r *ContestRepository) Invalidate(_ context.Context, contestID string) error {
	r.mu.Lock()
	delete(r.cache, contestID)
	r.mu.Unlock()
	return nil
}

func (r *ContestRepository) cached(contestID string) (domain.ContestDefinition, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[contestID]; ok && entry.expiresAt.After(now) {
		return entry.contest, true
	}
	return domain.ContestDefinition{}, false
}

func (r *ContestRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticContestLoader serves definitions from a map (tests and demo mode).
type StaticContestLoader struct {
	mu       sync.RWMutex
	contests map[string]domain.ContestDefinition
}

func NewStaticContestLoader(contests map[string]domain.ContestDefinition) *StaticContestLoader {
	if contests == nil {
		contests = make(map[string]domain.ContestDefinition)
	}
	return &StaticContestLoader{contests: contests}
}

func (l *StaticContestLoader) LoadContest(_ context.Context, contestID string) (domain.ContestDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if c, ok := l.contests[contestID]; ok {
		return c, nil
	}
	return domain.ContestDefinition{}, domain.NotFoundf("contest %s", contestID)
}

// SaveContest stores c, bumping its version when its queue changed.
func (l *StaticContestLoader) SaveContest(_ context.Context, c domain.ContestDefinition) (domain.ContestDefinition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var prev *domain.ContestDefinition
	if stored, ok := l.contests[c.ID]; ok {
		prev = &stored
	}
	next, err := app.PrepareContestSave(prev, c)
	if err != nil {
		return domain.ContestDefinition{}, err
	}
	l.contests[next.ID] = next
	return next, nil
}

// SetContestStatus moves the status only if it still equals from.
func (l *StaticContestLoader) SetContestStatus(_ context.Context, contestID string, from, to domain.ContestStatus) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.contests[contestID]
	if !ok {
		return false, domain.NotFoundf("contest %s", contestID)
	}
	if c.Status != from {
		return false, nil
	}
	c.Status = to
	l.contests[contestID] = c
	return true, nil
}
