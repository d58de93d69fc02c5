package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"contest-service/internal/infra/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	contests *memory.StaticContestLoader
	store    *memory.ParticipationStore
	events   *memory.EventLog
	listener *recordingListener
	service  *app.ContestService
}

func newFixture(t *testing.T, contest domain.ContestDefinition, opts ...app.Option) *fixture {
	t.Helper()
	f := &fixture{
		contests: memory.NewStaticContestLoader(map[string]domain.ContestDefinition{contest.ID: contest}),
		store:    memory.NewParticipationStore(),
		events:   memory.NewEventLog(),
		listener: &recordingListener{},
	}
	base := []app.Option{
		app.WithClock(fixedClock),
		app.WithPublisher(f.events),
		app.WithScoreListeners(f.listener),
	}
	f.service = app.NewContestService(memory.NewContestRepository(f.contests, time.Minute), f.store, append(base, opts...)...)
	return f
}

func (f *fixture) register(t *testing.T, userID string) domain.Participation {
	t.Helper()
	p, err := f.service.Register(context.Background(), domain.Registration{
		ContestID:   "contest-1",
		UserID:      userID,
		DisplayName: "Player " + userID,
	})
	require.NoError(t, err)
	return p
}

func TestContestServiceScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, twoLevelContest())
	f.register(t, "u1")

	entered, err := f.service.Enter(ctx, "contest-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, seg(1, 1, "en"), entered.Segment)

	for _, s := range []domain.Segment{seg(1, 1, "en"), seg(1, 1, "es"), seg(2, 1, "en")} {
		res, err := f.service.LogProgress(ctx, "contest-1", "u1", domain.SegmentResult{Segment: s, Score: 5, TimeTaken: 10})
		require.NoError(t, err)
		assert.False(t, res.Completed)
	}
	res, err := f.service.LogProgress(ctx, "contest-1", "u1", domain.SegmentResult{Segment: seg(2, 1, "es"), Score: 5, TimeTaken: 10})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, 20, res.TotalScore)

	again, err := f.service.LogProgress(ctx, "contest-1", "u1", domain.SegmentResult{Segment: seg(2, 1, "es"), Score: 50})
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressAlreadyLogged, again.Status)
	assert.Equal(t, 20, again.TotalScore)

	summary, err := f.service.Summary(ctx, "contest-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, summary.TotalScore)
	assert.Equal(t, domain.LanguageTotals{Score: 10, TimeTaken: 20, Rounds: 2}, summary.PerLanguage["es"])

	total, err := f.service.Total(ctx, "contest-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, total)

	_, err = f.service.Enter(ctx, "contest-1", "u1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assert.Equal(t, []domain.ProgressEventType{
		domain.EventParticipantEntered,
		domain.EventProgressLogged,
		domain.EventProgressLogged,
		domain.EventProgressLogged,
		domain.EventProgressLogged,
		domain.EventContestCompleted,
	}, f.events.Types())
	assert.Equal(t, 4, f.listener.count("contest-1"), "duplicate logs do not notify")
}

func TestContestServiceDisqualification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, twoLevelContest())
	f.register(t, "u1")

	for i := 0; i < 3; i++ {
		_, err := f.service.Enter(ctx, "contest-1", "u1")
		require.NoError(t, err)
	}
	_, err := f.service.Enter(ctx, "contest-1", "u1")
	require.ErrorIs(t, err, domain.ErrForbidden)

	p, err := f.store.Find(ctx, "contest-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisqualified, p.Status)

	_, err = f.service.Enter(ctx, "contest-1", "u1")
	require.ErrorIs(t, err, domain.ErrForbidden)

	types := f.events.Types()
	assert.Equal(t, domain.EventParticipantDisqualified, types[len(types)-1])
	assert.Len(t, types, 4, "disqualification is published once")
}

func TestContestServiceNotRegistered(t *testing.T) {
	f := newFixture(t, twoLevelContest())
	_, err := f.service.Enter(context.Background(), "contest-1", "ghost")
	assert.ErrorIs(t, err, domain.ErrNotRegistered)

	_, err = f.service.Enter(context.Background(), "missing", "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContestServiceRetriesConflicts(t *testing.T) {
	ctx := context.Background()
	contest := twoLevelContest()
	f := newFixture(t, contest)
	f.register(t, "u1")

	flaky := &flakyStore{ParticipationStore: f.store, failures: 2}
	svc := app.NewContestService(memory.NewContestRepository(f.contests, time.Minute), flaky, app.WithClock(fixedClock))

	res, err := svc.Enter(ctx, "contest-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, seg(1, 1, "en"), res.Segment)
	assert.Equal(t, 3, flaky.calls)

	flaky.failures = 5
	flaky.calls = 0
	_, err = svc.Enter(ctx, "contest-1", "u1")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 3, flaky.calls, "bounded retries")
}

func TestContestServiceDoesNotRetryStaleDefinition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, twoLevelContest())
	f.register(t, "u1")
	_, err := f.service.Enter(ctx, "contest-1", "u1")
	require.NoError(t, err)

	edited := twoLevelContest()
	edited.SupportedLanguages = []string{"es", "en"}
	_, err = f.contests.SaveContest(ctx, edited)
	require.NoError(t, err)
	svc := app.NewContestService(memory.NewContestRepository(f.contests, time.Minute), f.store, app.WithClock(fixedClock))

	_, err = svc.LogProgress(ctx, "contest-1", "u1", domain.SegmentResult{Segment: seg(1, 1, "en"), Score: 1})
	assert.ErrorIs(t, err, domain.ErrStaleDefinition)
}

func TestContestServiceNonQueueEditKeepsPlayersGoing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, twoLevelContest())
	f.register(t, "u1")
	_, err := f.service.Enter(ctx, "contest-1", "u1")
	require.NoError(t, err)

	edited := twoLevelContest()
	edited.Name = "Word Sprint Finals"
	edited.Status = domain.ContestPublished
	saved, err := f.contests.SaveContest(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version, "status and name do not touch the queue")

	svc := app.NewContestService(memory.NewContestRepository(f.contests, time.Minute), f.store, app.WithClock(fixedClock))
	res, err := svc.LogProgress(ctx, "contest-1", "u1", domain.SegmentResult{Segment: seg(1, 1, "en"), Score: 4})
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressAppended, res.Status)
	_, err = svc.Enter(ctx, "contest-1", "u1")
	require.NoError(t, err)
}

func TestContestServiceEnterRecoversFromQueueChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, twoLevelContest())
	f.register(t, "u1")
	_, err := f.service.Enter(ctx, "contest-1", "u1")
	require.NoError(t, err)
	_, err = f.service.LogProgress(ctx, "contest-1", "u1", domain.SegmentResult{Segment: seg(1, 1, "en"), Score: 4})
	require.NoError(t, err)

	edited := twoLevelContest()
	edited.SupportedLanguages = []string{"es", "en"}
	saved, err := f.contests.SaveContest(ctx, edited)
	require.NoError(t, err)
	require.Equal(t, 2, saved.Version)
	svc := app.NewContestService(memory.NewContestRepository(f.contests, time.Minute), f.store, app.WithClock(fixedClock))

	_, err = svc.LogProgress(ctx, "contest-1", "u1", domain.SegmentResult{Segment: seg(1, 1, "es"), Score: 1})
	require.ErrorIs(t, err, domain.ErrStaleDefinition)

	entered, err := svc.Enter(ctx, "contest-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, seg(1, 1, "es"), entered.Segment)

	res, err := svc.LogProgress(ctx, "contest-1", "u1", domain.SegmentResult{Segment: seg(1, 1, "es"), Score: 1})
	require.NoError(t, err)
	assert.Equal(t, ptr(seg(2, 1, "es")), res.Next)
	assert.Equal(t, 5, res.TotalScore)
}

func TestContestServicePersistsStatusTransitions(t *testing.T) {
	ctx := context.Background()
	contest := twoLevelContest()
	contest.Status = domain.ContestPublished
	contest.ContestStartAt = testNow.Add(-time.Hour)
	contest.ContestEndAt = testNow.Add(time.Hour)
	f := newFixture(t, contest)
	f.register(t, "u1")
	f.register(t, "u2")

	repo := memory.NewContestRepository(f.contests, time.Hour)
	svc := app.NewContestService(repo, f.store, app.WithClock(fixedClock), app.WithContestStatusWriter(f.contests))
	_, err := repo.GetContest(ctx, "contest-1")
	require.NoError(t, err)

	_, err = svc.Enter(ctx, "contest-1", "u1")
	require.NoError(t, err)
	stored, err := f.contests.LoadContest(ctx, "contest-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ContestActive, stored.Status)
	assert.Equal(t, 1, stored.Version)
	cached, err := repo.GetContest(ctx, "contest-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ContestActive, cached.Status, "cache dropped after the change")

	late := app.NewContestService(repo, f.store,
		app.WithClock(func() time.Time { return testNow.Add(2 * time.Hour) }),
		app.WithContestStatusWriter(f.contests))
	_, err = late.Enter(ctx, "contest-1", "u2")
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.Contains(t, err.Error(), "has ended")
	stored, err = f.contests.LoadContest(ctx, "contest-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ContestCompleted, stored.Status)
}

func TestConcurrentDuplicateProgressCountsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, twoLevelContest(), app.WithMaxConflictRetries(10))
	f.register(t, "u1")
	_, err := f.service.Enter(ctx, "contest-1", "u1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.service.LogProgress(ctx, "contest-1", "u1", domain.SegmentResult{Segment: seg(1, 1, "en"), Score: 7})
		}()
	}
	wg.Wait()

	p, err := f.store.Find(ctx, "contest-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, p.TotalScore)
	assert.Len(t, p.RoundScores, 1)
}

func TestSubmitFinalScores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, twoLevelContest())
	f.register(t, "u1")

	res, err := f.service.SubmitFinalScores(ctx, "contest-1", "u1", domain.RoundScoreBatch{
		Final: true,
		Entries: []domain.RoundScoreEntry{
			{Level: 1, Round: 1, Language: "en", Score: 9, TimeTaken: 3},
			{Level: 2, Round: 1, Language: "es", Score: 4, TimeTaken: 3},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, 13, res.TotalScore)
	assert.Equal(t, 2, res.RoundsCompleted)
	assert.Contains(t, f.events.Types(), domain.EventContestCompleted)
	assert.Equal(t, 1, f.listener.count("contest-1"))

	_, err = f.service.SubmitFinalScores(ctx, "contest-1", "u1", domain.RoundScoreBatch{
		Entries: []domain.RoundScoreEntry{{Level: 3, Round: 1, Language: "en"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	contest := twoLevelContest()
	contest.MaxParticipants = 1
	contest.Eligibility = domain.EligibilityRules{MinAge: 10, MaxAge: 14, AllowedCountries: []string{"IN"}}
	f := newFixture(t, contest)

	_, err := f.service.Register(ctx, domain.Registration{ContestID: "contest-1", UserID: "u1", Age: 9, Country: "IN"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.service.Register(ctx, domain.Registration{ContestID: "contest-1", UserID: "u1", Age: 12, Country: "US"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	p, err := f.service.Register(ctx, domain.Registration{ContestID: "contest-1", UserID: "u1", Age: 12, Country: "in"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApplied, p.Status)
	assert.Equal(t, domain.EntryPublic, p.EntrySource)
	assert.Equal(t, testNow, p.Timeline.AppliedAt)

	_, err = f.service.Register(ctx, domain.Registration{ContestID: "contest-1", UserID: "u2", Age: 12, Country: "IN"})
	assert.ErrorIs(t, err, domain.ErrForbidden, "full")
}

func TestRegisterDuplicate(t *testing.T) {
	f := newFixture(t, twoLevelContest())
	f.register(t, "u1")
	_, err := f.service.Register(context.Background(), domain.Registration{ContestID: "contest-1", UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)
}

func TestCheckRegistrationWindow(t *testing.T) {
	contest := twoLevelContest()
	contest.RegistrationStartAt = testNow.Add(-48 * time.Hour)
	contest.RegistrationEndAt = testNow.Add(-time.Minute)
	reg := domain.Registration{ContestID: contest.ID, UserID: "u1"}

	assert.ErrorIs(t, app.CheckRegistration(contest, reg, 0, testNow), domain.ErrForbidden)

	contest.GracePeriodSeconds = 120
	assert.NoError(t, app.CheckRegistration(contest, reg, 0, testNow), "grace period keeps it open")

	contest.Eligibility.SchoolRequired = true
	assert.ErrorIs(t, app.CheckRegistration(contest, reg, 0, testNow), domain.ErrForbidden)
	reg.EntrySource = domain.EntryOrganisation
	assert.NoError(t, app.CheckRegistration(contest, reg, 0, testNow))

	reg.SelectedLanguages = []string{"de"}
	assert.ErrorIs(t, app.CheckRegistration(contest, reg, 0, testNow), domain.ErrInvalidInput)
}

type flakyStore struct {
	app.ParticipationStore
	failures int
	calls    int
}

func (s *flakyStore) Update(ctx context.Context, p domain.Participation, rev int64) (domain.Participation, error) {
	s.calls++
	if s.failures > 0 {
		s.failures--
		return domain.Participation{}, domain.ErrConflict
	}
	return s.ParticipationStore.Update(ctx, p, rev)
}

type recordingListener struct {
	mu    sync.Mutex
	calls map[string]int
}

func (l *recordingListener) ScoresChanged(_ context.Context, contestID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = map[string]int{}
	}
	l.calls[contestID]++
}

func (l *recordingListener) count(contestID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[contestID]
}
