package app

import (
	"context"
	"time"

	"contest-service/internal/domain"
)

const (
	DefaultLeaderboardLimit = 20
	MaxLeaderboardLimit     = 100
)

// LeaderboardSource yields the raw ranking input of a contest.
type LeaderboardSource interface {
	LeaderboardRows(ctx context.Context, contestID string) ([]domain.LeaderboardRow, error)
}

// LeaderboardService computes standings on demand, off the progression path.
type LeaderboardService struct {
	contests ContestRepository
	rows     LeaderboardSource
	cache    LeaderboardCache
	opts     options
}

// NewLeaderboardService builds the service; cache may be nil.
func NewLeaderboardService(contests ContestRepository, rows LeaderboardSource, cache LeaderboardCache, opts ...Option) *LeaderboardService {
	o := buildOptions(opts)
	o.log = o.log.With("component", "leaderboard")
	return &LeaderboardService{contests: contests, rows: rows, cache: cache, opts: o}
}

// NormalizeLimit applies the default and rejects values outside 1..100.
func NormalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultLeaderboardLimit, nil
	}
	if limit < 0 || limit > MaxLeaderboardLimit {
		return 0, domain.Invalidf("limit must be between 1 and %d", MaxLeaderboardLimit)
	}
	return limit, nil
}

// GetLeaderboard returns the top limit entries of a contest.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, contestID string, limit int) (domain.Leaderboard, error) {
	limit, err := NormalizeLimit(limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if _, err := s.contests.GetContest(ctx, contestID); err != nil {
		return domain.Leaderboard{}, err
	}

	if s.cache != nil {
		lb, ok, err := s.cache.Get(ctx, contestID, limit)
		if err != nil {
			s.opts.log.Warn("leaderboard cache read failed", "contest_id", contestID, "error", err)
		} else if ok {
			return lb, nil
		}
	}

	lb, err := s.compute(ctx, contestID, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, contestID, limit, lb); err != nil {
			s.opts.log.Warn("leaderboard cache write failed", "contest_id", contestID, "error", err)
		}
	}
	return lb, nil
}

func (s *LeaderboardService) compute(ctx context.Context, contestID string, limit int) (domain.Leaderboard, error) {
	start := time.Now()
	defer s.opts.metrics.ObserveAnalytics("leaderboard", start)

	rows, err := s.rows.LeaderboardRows(ctx, contestID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return Rank(contestID, rows, limit, s.opts.now()), nil
}

// ScoresChanged drops cached standings of contestID.
func (s *LeaderboardService) ScoresChanged(ctx context.Context, contestID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, contestID); err != nil {
		s.opts.log.Warn("leaderboard cache invalidation failed", "contest_id", contestID, "error", err)
	}
}
