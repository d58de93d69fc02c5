package app

import (
	"context"
	"errors"
	"time"

	"contest-service/internal/domain"
	"github.com/google/uuid"
)

// ContestService contains the registration and progression use cases.
type ContestService struct {
	contests       ContestRepository
	participations ParticipationStore
	machine        Progression
	opts           options
}

func NewContestService(contests ContestRepository, participations ParticipationStore, opts ...Option) *ContestService {
	o := buildOptions(opts)
	o.log = o.log.With("component", "contest")
	return &ContestService{
		contests:       contests,
		participations: participations,
		machine:        Progression{DefaultLanguage: o.defaultLanguage},
		opts:           o,
	}
}

// Register creates an applied participation after window, capacity and
// eligibility checks.
func (s *ContestService) Register(ctx context.Context, reg domain.Registration) (domain.Participation, error) {
	if reg.ContestID == "" || reg.UserID == "" {
		return domain.Participation{}, domain.Invalidf("contest id and user id are required")
	}
	contest, err := s.contests.GetContest(ctx, reg.ContestID)
	if err != nil {
		return domain.Participation{}, err
	}
	count, err := s.participations.CountByContest(ctx, reg.ContestID)
	if err != nil {
		return domain.Participation{}, err
	}
	now := s.opts.now()
	if err := CheckRegistration(contest, reg, count, now); err != nil {
		return domain.Participation{}, err
	}

	source := reg.EntrySource
	if source == "" {
		source = domain.EntryPublic
	}
	p := domain.Participation{
		ID:                uuid.NewString(),
		ContestID:         contest.ID,
		UserID:            reg.UserID,
		DisplayName:       reg.DisplayName,
		Status:            domain.StatusApplied,
		EntrySource:       source,
		SelectedLanguages: append([]string(nil), reg.SelectedLanguages...),
		Timeline:          domain.ParticipationTimeline{AppliedAt: now},
		RegisteredAt:      now,
	}
	if err := s.participations.Create(ctx, p); err != nil {
		return domain.Participation{}, err
	}
	s.opts.log.Info("participant registered", "contest_id", contest.ID, "participation_id", p.ID)
	return p, nil
}

// Enter starts or resumes play for userID.
func (s *ContestService) Enter(ctx context.Context, contestID, userID string) (domain.EnterResult, error) {
	contest, err := s.contestForPlay(ctx, contestID)
	if err != nil {
		s.opts.metrics.Enter(outcome(err))
		return domain.EnterResult{}, err
	}
	var wasDisqualified bool
	p, res, err := runStep(ctx, s, contest, userID, func(p domain.Participation, c domain.ContestDefinition, now time.Time) (Transition[domain.EnterResult], error) {
		wasDisqualified = p.Status == domain.StatusDisqualified
		return s.machine.Enter(p, c, now)
	})
	switch {
	case err == nil:
		s.opts.metrics.Enter("ok")
		s.publish(ctx, domain.EventParticipantEntered, p, &res.Segment)
		if p.Status == domain.StatusCompleted {
			s.publish(ctx, domain.EventContestCompleted, p, nil)
			s.notify(ctx, contestID)
		}
	case !wasDisqualified && p.Status == domain.StatusDisqualified:
		s.opts.metrics.Enter("disqualified")
		s.opts.metrics.Disqualified()
		s.opts.log.Warn("participant disqualified", "contest_id", contestID, "participation_id", p.ID, "attempts", p.IncompleteAttempts)
		s.publish(ctx, domain.EventParticipantDisqualified, p, nil)
	default:
		s.opts.metrics.Enter(outcome(err))
	}
	return res, err
}

// LogProgress records one segment outcome. Repeating a segment returns
// ProgressAlreadyLogged and changes nothing.
func (s *ContestService) LogProgress(ctx context.Context, contestID, userID string, result domain.SegmentResult) (domain.ProgressResult, error) {
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		s.opts.metrics.Progress(outcome(err))
		return domain.ProgressResult{}, err
	}
	p, res, err := runStep(ctx, s, contest, userID, func(p domain.Participation, c domain.ContestDefinition, now time.Time) (Transition[domain.ProgressResult], error) {
		return s.machine.LogProgress(p, c, result, now)
	})
	if err != nil {
		s.opts.metrics.Progress(outcome(err))
		return res, err
	}
	s.opts.metrics.Progress(string(res.Status))
	if res.Status == domain.ProgressAlreadyLogged {
		s.opts.log.Debug("progress already logged", "contest_id", contestID, "participation_id", p.ID, "segment", formatSegment(result.Segment))
		return res, nil
	}
	seg := result.Segment
	s.publish(ctx, domain.EventProgressLogged, p, &seg)
	if res.Completed {
		s.opts.log.Info("contest completed", "contest_id", contestID, "participation_id", p.ID, "total_score", p.TotalScore)
		s.publish(ctx, domain.EventContestCompleted, p, nil)
	}
	s.notify(ctx, contestID)
	return res, nil
}

// SubmitFinalScores replaces recorded scores with a validated batch.
func (s *ContestService) SubmitFinalScores(ctx context.Context, contestID, userID string, batch domain.RoundScoreBatch) (domain.FinalizeResult, error) {
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return domain.FinalizeResult{}, err
	}
	var wasCompleted bool
	p, res, err := runStep(ctx, s, contest, userID, func(p domain.Participation, c domain.ContestDefinition, now time.Time) (Transition[domain.FinalizeResult], error) {
		wasCompleted = p.Status == domain.StatusCompleted
		return s.machine.Finalize(p, c, batch, now)
	})
	if err != nil {
		return res, err
	}
	if !wasCompleted && p.Status == domain.StatusCompleted {
		s.publish(ctx, domain.EventContestCompleted, p, nil)
	}
	s.notify(ctx, contestID)
	return res, nil
}

// Summary returns the ledger view of a participation.
func (s *ContestService) Summary(ctx context.Context, contestID, userID string) (domain.ParticipantSummary, error) {
	p, err := s.participations.Find(ctx, contestID, userID)
	if err != nil {
		return domain.ParticipantSummary{}, err
	}
	ledger := Ledger(p.RoundScores)
	return domain.ParticipantSummary{
		ParticipationID: p.ID,
		Status:          p.Status,
		TotalScore:      ledger.Total(),
		Completed:       p.ContestCompleted,
		Breakdown:       append([]domain.RoundScoreRecord{}, ledger...),
		PerLanguage:     ledger.ByLanguage(),
	}, nil
}

// Total is the sum of all recorded scores of a participation.
func (s *ContestService) Total(ctx context.Context, contestID, userID string) (int, error) {
	p, err := s.participations.Find(ctx, contestID, userID)
	if err != nil {
		return 0, err
	}
	return Ledger(p.RoundScores).Total(), nil
}

// contestForPlay loads a contest and applies any status change that is due,
// persisting it when a status writer is configured. A failed status write is
// logged and play continues on the stored status.
func (s *ContestService) contestForPlay(ctx context.Context, contestID string) (domain.ContestDefinition, error) {
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return domain.ContestDefinition{}, err
	}
	to := ContestStatusAt(contest, s.opts.now())
	if to == contest.Status || s.opts.statusWriter == nil {
		return contest, nil
	}

	changed, err := s.opts.statusWriter.SetContestStatus(ctx, contest.ID, contest.Status, to)
	if err != nil {
		s.opts.log.Error("update contest status", "contest_id", contest.ID, "from", string(contest.Status), "to", string(to), "error", err)
		return contest, nil
	}
	if changed {
		s.opts.log.Info("contest status changed", "contest_id", contest.ID, "from", string(contest.Status), "to", string(to))
	}
	if cache, ok := s.contests.(ContestCache); ok {
		if err := cache.Invalidate(ctx, contest.ID); err != nil {
			s.opts.log.Warn("invalidate cached contest", "contest_id", contest.ID, "error", err)
		}
	}
	contest.Status = to
	return contest, nil
}

// runStep applies step to the freshly read participation and writes the
// result conditionally, retrying lost races.
func runStep[R any](ctx context.Context, s *ContestService, contest domain.ContestDefinition, userID string, step func(domain.Participation, domain.ContestDefinition, time.Time) (Transition[R], error)) (domain.Participation, R, error) {
	var zero R
	contestID := contest.ID

	for attempt := 1; ; attempt++ {
		p, err := s.participations.Find(ctx, contestID, userID)
		if err != nil {
			return domain.Participation{}, zero, err
		}

		tr, stepErr := step(p, contest, s.opts.now())
		if !tr.Persist {
			return p, tr.Result, stepErr
		}

		stored, err := s.participations.Update(ctx, tr.Next, p.Revision)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) && attempt < s.opts.maxRetries {
				s.opts.metrics.ConflictRetry()
				s.opts.log.Debug("participation update conflict, retrying", "contest_id", contestID, "participation_id", p.ID, "attempt", attempt)
				if err := ctx.Err(); err != nil {
					return p, zero, err
				}
				continue
			}
			if errors.Is(err, domain.ErrConflict) {
				s.opts.log.Warn("participation update conflict, giving up", "contest_id", contestID, "participation_id", p.ID, "attempts", attempt)
			}
			return p, zero, err
		}
		return stored, tr.Result, stepErr
	}
}

func (s *ContestService) publish(ctx context.Context, typ domain.ProgressEventType, p domain.Participation, seg *domain.Segment) {
	if s.opts.publisher == nil {
		return
	}
	ev := domain.ProgressEvent{
		ID:              uuid.NewString(),
		Type:            typ,
		ContestID:       p.ContestID,
		ParticipationID: p.ID,
		UserID:          p.UserID,
		Segment:         seg,
		TotalScore:      p.TotalScore,
		OccurredAt:      s.opts.now(),
	}
	if err := s.opts.publisher.Publish(ctx, ev); err != nil {
		s.opts.log.Error("publish progression event", "type", string(typ), "participation_id", p.ID, "error", err)
	}
}

func (s *ContestService) notify(ctx context.Context, contestID string) {
	for _, l := range s.opts.listeners {
		l.ScoresChanged(ctx, contestID)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
