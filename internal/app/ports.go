package app

import (
	"context"
	"time"

	"contest-service/internal/domain"
)

// ContestRepository loads contest definitions (from cache/backing store).
type ContestRepository interface {
	GetContest(ctx context.Context, contestID string) (domain.ContestDefinition, error)
}

// ContestStatusWriter moves a stored contest between lifecycle states without
// touching its version. It reports false when the stored status no longer
// equals from.
type ContestStatusWriter interface {
	SetContestStatus(ctx context.Context, contestID string, from, to domain.ContestStatus) (bool, error)
}

// ContestCache is implemented by repositories that can drop a cached definition.
type ContestCache interface {
	Invalidate(ctx context.Context, contestID string) error
}

// ParticipationStore persists participations. Update is a conditional write:
// it succeeds only if the stored record still has expectedRevision and belongs
// to the same contest, and fails with domain.ErrConflict otherwise.
type ParticipationStore interface {
	Create(ctx context.Context, p domain.Participation) error
	Find(ctx context.Context, contestID, userID string) (domain.Participation, error)
	CountByContest(ctx context.Context, contestID string) (int, error)
	Update(ctx context.Context, p domain.Participation, expectedRevision int64) (domain.Participation, error)
	LeaderboardRows(ctx context.Context, contestID string) ([]domain.LeaderboardRow, error)
}

// LeaderboardCache keeps computed standings between score changes.
type LeaderboardCache interface {
	Get(ctx context.Context, contestID string, limit int) (domain.Leaderboard, bool, error)
	Set(ctx context.Context, contestID string, limit int, lb domain.Leaderboard) error
	Invalidate(ctx context.Context, contestID string) error
}

// EventPublisher emits progression events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ProgressEvent) error
}

// MasteryEventStore is the append-only interaction event stream.
type MasteryEventStore interface {
	AppendEvent(ctx context.Context, ev domain.MasteryEvent) error
	Tally(ctx context.Context, q domain.TallyQuery) (domain.MasteryTally, error)
}

// VocabularyIndex answers questions about approved translations.
type VocabularyIndex interface {
	ApprovedWordCount(ctx context.Context, language, orgID string) (int, error)
	CountApprovedAmong(ctx context.Context, language, orgID string, translationIDs []string) (int, error)
}

// ContentProvider returns playable items for a segment.
type ContentProvider interface {
	FetchContent(ctx context.Context, req domain.ContentRequest) ([]domain.ContentItem, error)
}

// ScoreListener is told after a stored write changed a contest's standings.
// It runs on the request path and must return quickly.
type ScoreListener interface {
	ScoresChanged(ctx context.Context, contestID string)
}

type Clock func() time.Time
