package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"contest-service/internal/infra/memory"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var testNow = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	server *httptest.Server
	auth   *Authenticator
	feed   *app.LeaderboardFeed
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := app.WithClock(func() time.Time { return testNow })

	contests := memory.NewContestRepository(memory.NewStaticContestLoader(map[string]domain.ContestDefinition{
		"contest-1": sampleContest(),
	}), time.Minute)
	participations := memory.NewParticipationStore()

	board := app.NewLeaderboardService(contests, participations, memory.NewLeaderboardCache(time.Minute), clock)
	feed := app.NewLeaderboardFeed(board, 10)
	t.Cleanup(feed.Close)

	vocabulary := memory.NewVocabulary()
	vocabulary.Approve("en", "", "w1", "w2")

	provider := memory.NewStaticContentProvider().
		Add(domain.GameTypeMatching, "en",
			domain.ContentItem{ID: "m1"}, domain.ContentItem{ID: "m2"}, domain.ContentItem{ID: "m3"}).
		Add(domain.GameTypeQuiz, "en", quizPool()...)

	svc := Services{
		Contests: app.NewContestService(contests, participations, clock,
			app.WithPublisher(memory.NewEventLog()),
			app.WithScoreListeners(board, feed)),
		Leaderboards: board,
		Feed:         feed,
		Mastery:      app.NewMasteryService(memory.NewEventStore(), vocabulary, clock),
		Content: app.NewContentService(contests, provider, app.WithRandSource(func() *rand.Rand {
			return rand.New(rand.NewSource(7))
		})),
	}
	auth := NewAuthenticator(testSecret)
	server := httptest.NewServer(NewRouter(svc, auth, nil).Handler(nil))
	t.Cleanup(server.Close)
	return &testEnv{server: server, auth: auth, feed: feed}
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if userID != "" {
		token, err := e.auth.Issue(userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthzIsPublic(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPost, "/contests/contest-1/enter", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", errorCode(body))
}

func TestContestFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/contests/contest-1/register", "u1", registerRequest{DisplayName: "Alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/contests/contest-1/register", "u1", registerRequest{DisplayName: "Alice"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_registered", errorCode(body))

	resp, body = env.do(t, http.MethodPost, "/contests/contest-1/enter", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	segment := body["segment"].(map[string]any)
	assert.Equal(t, float64(1), segment["level"])
	assert.Equal(t, "en", segment["language"])
	assert.Equal(t, float64(1), body["remainingAttempts"])

	// out-of-order segment
	resp, body = env.do(t, http.MethodPost, "/contests/contest-1/progress", "u1", domain.SegmentResult{
		Segment: domain.Segment{Level: 2, Round: 1, Language: "en"}, Score: 3,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", errorCode(body))

	resp, body = env.do(t, http.MethodPost, "/contests/contest-1/progress", "u1", domain.SegmentResult{
		Segment: domain.Segment{Level: 1, Round: 1, Language: "en"}, Score: 7, TimeTaken: 30,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "appended", body["status"])
	assert.Equal(t, float64(7), body["totalScore"])

	resp, body = env.do(t, http.MethodPost, "/contests/contest-1/progress", "u1", domain.SegmentResult{
		Segment: domain.Segment{Level: 1, Round: 1, Language: "en"}, Score: 70,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "already_logged", body["status"])
	assert.Equal(t, float64(7), body["totalScore"])

	resp, body = env.do(t, http.MethodGet, "/contests/contest-1/summary", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(7), body["totalScore"])

	resp, body = env.do(t, http.MethodGet, "/contests/contest-1/leaderboard?limit=5", "u2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].(map[string]any)["userId"])
	assert.Equal(t, false, entries[0].(map[string]any)["isCurrentUser"])

	resp, body = env.do(t, http.MethodGet, "/contests/contest-1/leaderboard?limit=5", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries = body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0].(map[string]any)["isCurrentUser"], "served from cache, flagged per caller")

	resp, body = env.do(t, http.MethodPost, "/contests/contest-1/scores", "u1", domain.RoundScoreBatch{
		Entries: []domain.RoundScoreEntry{
			{Level: 1, Round: 1, Language: "en", Score: 7, TimeTaken: 30},
			{Level: 2, Round: 1, Language: "en", Score: 4, TimeTaken: 50},
		},
		Final: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, float64(11), body["totalScore"])

	resp, body = env.do(t, http.MethodPost, "/contests/contest-1/enter", "u1", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body["error"].(map[string]any)["message"], "11")
}

func TestErrorStatuses(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/contests/nope/enter", "u1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorCode(body))

	resp, body = env.do(t, http.MethodPost, "/contests/contest-1/enter", "u1", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "not_registered", errorCode(body))

	resp, body = env.do(t, http.MethodGet, "/contests/contest-1/leaderboard?limit=500", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_input", errorCode(body))

	resp, body = env.do(t, http.MethodGet, "/contests/contest-1/leaderboard?limit=ten", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_input", errorCode(body))
}

func TestMasteryOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/events", "u1", map[string]any{
		"eventType":     "interaction_attempt",
		"language":      "en",
		"levelSequence": 1,
		"isCorrect":     true,
		"translationId": "w1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "u1", body["userId"])
	assert.NotEmpty(t, body["id"])

	resp, body = env.do(t, http.MethodPost, "/events", "u1", map[string]any{
		"eventType": "interaction_attempt",
		"userId":    "someone-else",
		"language":  "en",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", errorCode(body))

	resp, body = env.do(t, http.MethodGet, "/mastery/en", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(32), body["masteryScore"])
	assert.Equal(t, float64(1), body["wordsExposed"])
	assert.Equal(t, float64(2), body["totalWords"])
	assert.Equal(t, float64(50), body["coveragePercent"])
	assert.Equal(t, float64(32), body["trendVsSevenDaysAgo"])
	assert.Equal(t, "last 7 days", body["period"])
}

func TestRoundContentOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/contests/contest-1/play/levels/2/rounds/1?language=en", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "quiz", body["gameType"])
	assert.Len(t, body["items"], 6)
	allocation := body["allocation"].(map[string]any)
	assert.Equal(t, float64(2), allocation["easy"])
	assert.Equal(t, float64(2), allocation["medium"])
	assert.Equal(t, float64(2), allocation["hard"])

	resp, body = env.do(t, http.MethodGet, "/contests/contest-1/play/levels/1/rounds/1?language=en", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 2)

	resp, body = env.do(t, http.MethodGet, "/contests/contest-1/play/levels/9/rounds/1?language=en", "u1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/contests/contest-1/play/levels/x/rounds/1", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_input", errorCode(body))
}

func TestVerifyAcceptsUserIDClaimAndRejectsForeignTokens(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u9"})
	raw, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	userID, err := auth.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "u9", userID)

	foreign, err := NewAuthenticator("other-secret").Issue("u1", time.Hour)
	require.NoError(t, err)
	_, err = auth.Verify(foreign)
	assert.Error(t, err)

	expired, err := auth.Issue("u1", -time.Minute)
	require.NoError(t, err)
	_, err = auth.Verify(expired)
	assert.Error(t, err)

	anonymous, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = auth.Verify(anonymous)
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNotRegistered, http.StatusForbidden, "not_registered"},
		{domain.Forbiddenf("no more attempts"), http.StatusForbidden, "forbidden"},
		{domain.NotFoundf("contest x"), http.StatusNotFound, "not_found"},
		{domain.Invalidf("bad"), http.StatusBadRequest, "invalid_input"},
		{domain.ErrAlreadyRegistered, http.StatusConflict, "already_registered"},
		{domain.ErrStaleDefinition, http.StatusConflict, "stale_definition"},
		{domain.ErrConflict, http.StatusConflict, "conflict"},
		{fmt.Errorf("%w: mongo down", domain.ErrUpstreamUnavailable), http.StatusServiceUnavailable, "upstream_unavailable"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func sampleContest() domain.ContestDefinition {
	objects := 2
	return domain.ContestDefinition{
		ID:                    "contest-1",
		Name:                  "Word Sprint",
		Status:                domain.ContestActive,
		Version:               1,
		SupportedLanguages:    []string{"en"},
		MaxIncompleteAttempts: 2,
		Levels: []domain.Level{
			{Seq: 1, GameType: domain.GameTypeMatching, Rounds: []domain.Round{
				{Seq: 1, QuestionCount: 4, ObjectCount: &objects, TimeLimitSeconds: 60},
			}},
			{Seq: 2, GameType: domain.GameTypeQuiz, Rounds: []domain.Round{{
				Seq:                    1,
				QuestionCount:          6,
				TimeLimitSeconds:       90,
				DifficultyDistribution: domain.DifficultyDistribution{Easy: 1, Medium: 1, Hard: 1},
			}}},
		},
	}
}

func quizPool() []domain.ContentItem {
	var items []domain.ContentItem
	for i, tag := range []string{"easy", "easy", "easy", "medium", "medium", "medium", "hard", "hard", "hard"} {
		items = append(items, domain.ContentItem{ID: fmt.Sprintf("q%d", i), Difficulty: tag})
	}
	return items
}
