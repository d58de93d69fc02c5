package memory

import (
	"context"
	"sync"
	"time"

	"contest-service/internal/domain"
)

// LeaderboardCache keeps computed standings per (contest, limit) for ttl.
type LeaderboardCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]map[int]cachedBoard
}

type cachedBoard struct {
	board     domain.Leaderboard
	expiresAt time.Time
}

func NewLeaderboardCache(ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]map[int]cachedBoard),
	}
}

func (c *LeaderboardCache) Get(_ context.Context, contestID string, limit int) (domain.Leaderboard, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[contestID][limit]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Leaderboard{}, false, nil
	}
	return entry.board, true, nil
}

func (c *LeaderboardCache) Set(_ context.Context, contestID string, limit int, lb domain.Leaderboard) error {
	if c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	byLimit, ok := c.entries[contestID]
	if !ok {
		byLimit = make(map[int]cachedBoard)
		c.entries[contestID] = byLimit
	}
	byLimit[limit] = cachedBoard{board: lb, expiresAt: c.clock().Add(c.ttl)}
	return nil
}

func (c *LeaderboardCache) Invalidate(_ context.Context, contestID string) error {
	c.mu.Lock()
	delete(c.entries, contestID)
	c.mu.Unlock()
	return nil
}
