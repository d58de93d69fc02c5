package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"contest-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// LeaderboardCache stores computed standings as: HSET leaderboard:{contestID} {limit} {json}
// A score change deletes the whole hash.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) Get(ctx context.Context, contestID string, limit int) (domain.Leaderboard, bool, error) {
	raw, err := c.client.HGet(ctx, leaderboardKey(contestID), strconv.Itoa(limit)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Leaderboard{}, false, nil
		}
		return domain.Leaderboard{}, false, err
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return domain.Leaderboard{}, false, nil
	}
	return lb, true, nil
}

func (c *LeaderboardCache) Set(ctx context.Context, contestID string, limit int, lb domain.Leaderboard) error {
	if c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(lb)
	if err != nil {
		return err
	}
	key := leaderboardKey(contestID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, strconv.Itoa(limit), data)
	pipe.Expire(ctx, key, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *LeaderboardCache) Invalidate(ctx context.Context, contestID string) error {
	return c.client.Del(ctx, leaderboardKey(contestID)).Err()
}

func leaderboardKey(contestID string) string {
	return "leaderboard:" + contestID
}
