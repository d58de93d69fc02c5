package app

import (
	"fmt"
	"time"

	"contest-service/internal/domain"
)

// Transition is the outcome of a progression step. Next is a fresh snapshot;
// the input participation is never mutated. Persist tells the caller whether
// Next must be written back, which is also true for some failed steps
// (disqualification is stored before Forbidden is returned).
type Transition[R any] struct {
	Next    domain.Participation
	Result  R
	Persist bool
}

// Progression is the pure segment progression state machine. It holds no
// state besides the language used for contests that declare none.
type Progression struct {
	DefaultLanguage string
}

func (m Progression) queueFor(p domain.Participation, contest domain.ContestDefinition) []domain.Segment {
	return BuildSegmentQueue(contest, m.fallbackLanguage(p))
}

func (m Progression) fallbackLanguage(p domain.Participation) string {
	if len(p.SelectedLanguages) > 0 && p.SelectedLanguages[0] != "" {
		return p.SelectedLanguages[0]
	}
	return m.DefaultLanguage
}

// Enter starts or resumes play. Every successful call consumes one attempt;
// reaching the attempt limit disqualifies on the next call. A participant whose
// pointer was built from an older queue is re-seated at the first segment of
// the current queue it has not played.
func (m Progression) Enter(p domain.Participation, contest domain.ContestDefinition, now time.Time) (Transition[domain.EnterResult], error) {
	var tr Transition[domain.EnterResult]

	switch {
	case p.Status == domain.StatusDisqualified:
		return tr, domain.Forbiddenf("participant is disqualified from contest %s", contest.ID)
	case p.Status == domain.StatusCompleted || p.ContestCompleted:
		return tr, domain.Forbiddenf("contest already completed with a total score of %d", p.TotalScore)
	}
	if err := CheckPlayable(contest, now); err != nil {
		return tr, err
	}

	next := p.Clone()
	maxAttempts := contest.MaxIncompleteAttempts
	if maxAttempts > 0 && next.IncompleteAttempts >= maxAttempts {
		next.Status = domain.StatusDisqualified
		next.LastActiveAt = now
		tr.Next = next
		tr.Persist = true
		return tr, domain.Forbiddenf("maximum of %d incomplete attempts reached, participant disqualified", maxAttempts)
	}

	next.IncompleteAttempts++
	next.LastActiveAt = now

	resumed := next.Status == domain.StatusInProgress
	switch {
	case !resumed:
		next.Timeline.ActivatedAt = now
		m.seat(&next, contest, now)
	case next.DefinitionVersion != contest.Version:
		// the queue changed under a running participant
		m.seat(&next, contest, now)
	}

	remaining := -1
	if maxAttempts > 0 {
		remaining = maxAttempts - next.IncompleteAttempts
	}
	tr.Next = next
	tr.Persist = true
	tr.Result = domain.EnterResult{
		ParticipationID:   next.ID,
		Status:            next.Status,
		Segment:           next.Pointer(),
		Resumed:           resumed,
		RemainingAttempts: remaining,
		TotalScore:        next.TotalScore,
	}
	if resumed {
		tr.Result.RoundScores = append([]domain.RoundScoreRecord(nil), next.RoundScores...)
	}
	return tr, nil
}

// LogProgress records the outcome of the segment under the pointer and moves
// the pointer to the next segment not yet played. A repeated key is answered
// with ProgressAlreadyLogged and nothing to persist.
func (m Progression) LogProgress(p domain.Participation, contest domain.ContestDefinition, res domain.SegmentResult, now time.Time) (Transition[domain.ProgressResult], error) {
	var tr Transition[domain.ProgressResult]

	ledger := Ledger(p.RoundScores)
	if ledger.Has(res.Segment) {
		tr.Next = p
		tr.Result = domain.ProgressResult{
			Status:     domain.ProgressAlreadyLogged,
			TotalScore: p.TotalScore,
			Completed:  p.ContestCompleted,
		}
		if p.Status == domain.StatusInProgress {
			ptr := p.Pointer()
			tr.Result.Next = &ptr
		}
		return tr, nil
	}

	switch p.Status {
	case domain.StatusApplied:
		return tr, domain.Forbiddenf("enter the contest before logging progress")
	case domain.StatusCompleted:
		return tr, domain.Forbiddenf("contest already completed with a total score of %d", p.TotalScore)
	case domain.StatusDisqualified:
		return tr, domain.Forbiddenf("participant is disqualified from contest %s", contest.ID)
	}
	if p.DefinitionVersion != contest.Version {
		return tr, fmt.Errorf("%w, enter again to continue", domain.ErrStaleDefinition)
	}
	if res.Score < 0 || res.TimeTaken < 0 {
		return tr, domain.Invalidf("score and time taken must not be negative")
	}

	if segmentIndex(m.queueFor(p, contest), res.Segment) < 0 {
		return tr, domain.NotFoundf("segment %s is not part of contest %s", formatSegment(res.Segment), contest.ID)
	}
	if res.Segment != p.Pointer() {
		return tr, domain.Forbiddenf("expected segment %s, got %s", formatSegment(p.Pointer()), formatSegment(res.Segment))
	}

	next := p.Clone()
	appended, _ := ledger.Append(domain.RoundScoreRecord{
		Level:       res.Segment.Level,
		Round:       res.Segment.Round,
		Language:    res.Segment.Language,
		Score:       res.Score,
		TimeTaken:   res.TimeTaken,
		CompletedAt: now,
	})
	next.RoundScores = appended
	next.TotalScore = appended.Total()
	next.LastActiveAt = now

	tr.Result = domain.ProgressResult{Status: domain.ProgressAppended}
	if seg, ok := m.firstUnplayed(next, contest); ok {
		next = next.WithPointer(seg)
		tr.Result.Next = &seg
	} else {
		markCompleted(&next, now)
		tr.Result.Completed = true
	}
	tr.Result.TotalScore = next.TotalScore
	tr.Next = next
	tr.Persist = true
	return tr, nil
}

// Finalize replaces the recorded scores with a validated batch. It never
// downgrades a terminal status. A non-final batch re-seats a running or
// applied participant at the first segment the new ledger lacks; when every
// segment is covered the status is left as it was.
func (m Progression) Finalize(p domain.Participation, contest domain.ContestDefinition, batch domain.RoundScoreBatch, now time.Time) (Transition[domain.FinalizeResult], error) {
	var tr Transition[domain.FinalizeResult]

	records, err := ValidateBatch(contest, batch, now)
	if err != nil {
		return tr, err
	}
	if p.Status == domain.StatusDisqualified {
		return tr, domain.Forbiddenf("participant is disqualified from contest %s", contest.ID)
	}

	next := p.Clone()
	next.RoundScores = records
	next.TotalScore = Ledger(records).Total()
	next.LastActiveAt = now

	switch {
	case batch.Final:
		if next.Status != domain.StatusCompleted {
			markCompleted(&next, now)
		}
	case !next.Status.Terminal():
		if seg, ok := m.firstUnplayed(next, contest); ok {
			if next.Status == domain.StatusApplied {
				next.Timeline.ActivatedAt = now
			}
			next = next.WithPointer(seg)
			next.DefinitionVersion = contest.Version
			next.Status = domain.StatusInProgress
		}
	}

	tr.Next = next
	tr.Persist = true
	tr.Result = domain.FinalizeResult{
		Status:          next.Status,
		TotalScore:      next.TotalScore,
		RoundsCompleted: len(records),
	}
	return tr, nil
}

// seat points p at the first queue segment its ledger lacks and stamps the
// current version. With nothing left to play the participation completes.
func (m Progression) seat(p *domain.Participation, contest domain.ContestDefinition, now time.Time) {
	p.DefinitionVersion = contest.Version
	seg, ok := m.firstUnplayed(*p, contest)
	if !ok {
		*p = p.WithPointer(domain.Segment{})
		markCompleted(p, now)
		return
	}
	*p = p.WithPointer(seg)
	p.Status = domain.StatusInProgress
}

func (m Progression) firstUnplayed(p domain.Participation, contest domain.ContestDefinition) (domain.Segment, bool) {
	ledger := Ledger(p.RoundScores)
	for _, seg := range m.queueFor(p, contest) {
		if !ledger.Has(seg) {
			return seg, true
		}
	}
	return domain.Segment{}, false
}

// ValidateBatch turns a submitted batch into ledger records, rejecting
// malformed or duplicate entries instead of defaulting them.
func ValidateBatch(contest domain.ContestDefinition, batch domain.RoundScoreBatch, now time.Time) ([]domain.RoundScoreRecord, error) {
	if len(batch.Entries) == 0 {
		return nil, domain.Invalidf("round scores must not be empty")
	}
	var ledger Ledger
	for i, e := range batch.Entries {
		if e.Level < 1 || e.Round < 1 {
			return nil, domain.Invalidf("entry %d: level and round must be positive", i)
		}
		if _, _, ok := contest.FindRound(e.Level, e.Round); !ok {
			return nil, domain.Invalidf("entry %d: level %d round %d does not exist", i, e.Level, e.Round)
		}
		if !contest.SupportsLanguage(e.Language) {
			return nil, domain.Invalidf("entry %d: language %q is not supported", i, e.Language)
		}
		if e.Score < 0 || e.TimeTaken < 0 {
			return nil, domain.Invalidf("entry %d: score and time taken must not be negative", i)
		}
		var status domain.ProgressStatus
		ledger, status = ledger.Append(domain.RoundScoreRecord{
			Level:       e.Level,
			Round:       e.Round,
			Language:    e.Language,
			Score:       e.Score,
			TimeTaken:   e.TimeTaken,
			CompletedAt: now,
		})
		if status == domain.ProgressAlreadyLogged {
			return nil, domain.Invalidf("entry %d: duplicate score for level %d round %d language %s", i, e.Level, e.Round, e.Language)
		}
	}
	return ledger, nil
}

// ContestStatusAt returns the status a contest should carry at now. A
// published contest turns active once its window has opened, and an active
// one turns completed after its end. Other statuses never move on their own.
func ContestStatusAt(contest domain.ContestDefinition, now time.Time) domain.ContestStatus {
	started := contest.ContestStartAt.IsZero() || !now.Before(contest.ContestStartAt)
	ended := !contest.ContestEndAt.IsZero() && now.After(contest.ContestEndAt)
	switch {
	case contest.Status == domain.ContestPublished && started && !ended:
		return domain.ContestActive
	case contest.Status == domain.ContestActive && ended:
		return domain.ContestCompleted
	}
	return contest.Status
}

// CheckPlayable verifies the contest status and play window. Zero window
// bounds are open.
func CheckPlayable(contest domain.ContestDefinition, now time.Time) error {
	switch contest.Status {
	case domain.ContestPublished, domain.ContestActive:
	case domain.ContestCompleted:
		return domain.Forbiddenf("contest %s has ended", contest.ID)
	default:
		status := contest.Status
		if status == "" {
			status = domain.ContestDraft
		}
		return domain.Forbiddenf("contest %s is not playable, status is %s", contest.ID, status)
	}
	if !contest.ContestStartAt.IsZero() && now.Before(contest.ContestStartAt) {
		return domain.Forbiddenf("contest %s has not yet started, it opens at %s", contest.ID, contest.ContestStartAt.UTC().Format(time.RFC3339))
	}
	if !contest.ContestEndAt.IsZero() && now.After(contest.ContestEndAt) {
		return domain.Forbiddenf("contest %s has ended at %s", contest.ID, contest.ContestEndAt.UTC().Format(time.RFC3339))
	}
	return nil
}

func markCompleted(p *domain.Participation, now time.Time) {
	p.Status = domain.StatusCompleted
	p.ContestCompleted = true
	p.ContestCompletedAt = now
	p.Timeline.CompletedAt = now
}

func formatSegment(s domain.Segment) string {
	return fmt.Sprintf("(%d,%d,%s)", s.Level, s.Round, s.Language)
}
