package app

import (
	"context"
	"time"

	"contest-service/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// TrendWindow is how far back the trend baseline is taken.
const TrendWindow = 7 * 24 * time.Hour

// MasteryService ingests interaction events and scores language mastery.
type MasteryService struct {
	events     MasteryEventStore
	vocabulary VocabularyIndex
	opts       options
}

func NewMasteryService(events MasteryEventStore, vocabulary VocabularyIndex, opts ...Option) *MasteryService {
	o := buildOptions(opts)
	o.log = o.log.With("component", "mastery")
	return &MasteryService{events: events, vocabulary: vocabulary, opts: o}
}

// LogEvent appends an event on behalf of callerID. Callers may only log
// their own events.
func (s *MasteryService) LogEvent(ctx context.Context, callerID string, ev domain.MasteryEvent) (domain.MasteryEvent, error) {
	if !ev.Type.Valid() {
		return domain.MasteryEvent{}, domain.Invalidf("unknown event type %q", ev.Type)
	}
	if ev.UserID == "" {
		ev.UserID = callerID
	}
	if ev.UserID != callerID {
		return domain.MasteryEvent{}, domain.Forbiddenf("events can only be logged for the authenticated user")
	}
	if ev.Language == "" {
		return domain.MasteryEvent{}, domain.Invalidf("language is required")
	}
	if ev.HintFlips < 0 || ev.ResponseTimeMs < 0 {
		return domain.MasteryEvent{}, domain.Invalidf("hint flips and response time must not be negative")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.opts.now()
	}
	if err := s.events.AppendEvent(ctx, ev); err != nil {
		return domain.MasteryEvent{}, err
	}
	return ev, nil
}

// GetMasteryScore scores userID in language as of now and compares it with
// the score computed only from events older than TrendWindow.
func (s *MasteryService) GetMasteryScore(ctx context.Context, userID, language, orgID string) (domain.MasteryScore, error) {
	if userID == "" || language == "" {
		return domain.MasteryScore{}, domain.Invalidf("user and language are required")
	}
	start := time.Now()
	defer s.opts.metrics.ObserveAnalytics("mastery", start)

	asOf := s.opts.now()
	var (
		current, past domain.MasteryTally
		totalWords    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.events.Tally(gctx, domain.TallyQuery{UserID: userID, Language: language})
		return err
	})
	g.Go(func() error {
		var err error
		past, err = s.events.Tally(gctx, domain.TallyQuery{UserID: userID, Language: language, Before: asOf.Add(-TrendWindow)})
		return err
	})
	g.Go(func() error {
		var err error
		totalWords, err = s.vocabulary.ApprovedWordCount(gctx, language, orgID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.MasteryScore{}, err
	}

	exposed := 0
	if len(current.TranslationIDs) > 0 {
		var err error
		exposed, err = s.vocabulary.CountApprovedAmong(ctx, language, orgID, current.TranslationIDs)
		if err != nil {
			return domain.MasteryScore{}, err
		}
	}

	score := MasteryPoints(current)
	return domain.MasteryScore{
		UserID:       userID,
		Language:     language,
		Score:        score,
		WordsExposed: exposed,
		TotalWords:   totalWords,
		Coverage:     CoveragePercent(exposed, totalWords),
		Trend:        score - MasteryPoints(past),
		Period:       "last 7 days",
		AsOf:         asOf,
	}, nil
}
