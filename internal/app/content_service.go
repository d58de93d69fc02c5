package app

import (
	"context"
	"errors"
	"fmt"

	"contest-service/internal/domain"
)

// ContentService resolves playable content for a contest segment.
type ContentService struct {
	contests ContestRepository
	provider ContentProvider
	opts     options
}

func NewContentService(contests ContestRepository, provider ContentProvider, opts ...Option) *ContentService {
	o := buildOptions(opts)
	o.log = o.log.With("component", "content")
	return &ContentService{contests: contests, provider: provider, opts: o}
}

// FetchRoundContent returns the items for (level, round, language). Quiz
// rounds are sampled from the provider's pool by difficulty weights with a
// fresh random source per call.
func (s *ContentService) FetchRoundContent(ctx context.Context, contestID string, seg domain.Segment, filters domain.ContentFilters) (domain.RoundContent, error) {
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return domain.RoundContent{}, err
	}
	level, round, ok := contest.FindRound(seg.Level, seg.Round)
	if !ok {
		return domain.RoundContent{}, domain.NotFoundf("level %d round %d not found in contest %s", seg.Level, seg.Round, contestID)
	}
	if !contest.SupportsLanguage(seg.Language) {
		return domain.RoundContent{}, domain.Invalidf("language %q is not supported by contest %s", seg.Language, contestID)
	}
	if filters.OrgID == "" {
		filters.OrgID = contest.OrgID
	}

	req := domain.ContentRequest{
		ContestID: contestID,
		Segment:   seg,
		GameType:  level.GameType,
		Count:     round.QuestionCount,
		HintsUsed: round.HintsUsed,
		Filters:   filters,
	}
	if level.GameType == domain.GameTypeMatching && round.ObjectCount != nil && *round.ObjectCount > 0 {
		req.Count = *round.ObjectCount
	}

	items, err := s.provider.FetchContent(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamUnavailable) || errors.Is(err, context.Canceled) {
			return domain.RoundContent{}, err
		}
		s.opts.log.Error("content provider failed", "contest_id", contestID, "segment", formatSegment(seg), "error", err)
		return domain.RoundContent{}, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	out := domain.RoundContent{
		ContestID:        contestID,
		Segment:          seg,
		GameType:         level.GameType,
		TimeLimitSeconds: round.TimeLimitSeconds,
	}
	switch level.GameType {
	case domain.GameTypeQuiz:
		allocator := NewDifficultyAllocator(s.opts.newRand())
		out.Allocation, out.Items = allocator.Select(round.QuestionCount, round.DifficultyDistribution, items)
	default:
		items = dedupeItems(items)
		if req.Count > 0 && len(items) > req.Count {
			items = items[:req.Count]
		}
		out.Items = items
	}
	return out, nil
}
