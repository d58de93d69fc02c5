package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/config"
	"contest-service/internal/domain"
	"contest-service/internal/infra/memory"
	"contest-service/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contestYAML = `
id: spring-cup
name: Spring Cup
status: published
supported_languages: [en, fr]
max_incomplete_attempts: 2
registration_start_at: 2025-04-01T00:00:00Z
levels:
  - name: Match
    level_seq: 1
    game_type: matching
    rounds:
      - name: R1
        round_seq: 1
        time_limit_seconds: 60
        question_count: 5
        hints_used: Long Hints
  - name: Quiz
    level_seq: 2
    game_type: quiz
    rounds:
      - name: R1
        round_seq: 1
        time_limit_seconds: 90
        question_count: 10
        difficulty_distribution: {easy: 0.5, medium: 0.3, hard: 0.2}
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadContestFile(t *testing.T) {
	c, err := readContestFile(writeFile(t, contestYAML))
	require.NoError(t, err)
	assert.Equal(t, "spring-cup", c.ID)
	assert.Equal(t, domain.ContestPublished, c.Status)
	require.Len(t, c.Levels, 2)
	assert.Equal(t, domain.GameTypeQuiz, c.Levels[1].GameType)
	assert.Equal(t, 0.3, c.Levels[1].Rounds[0].DifficultyDistribution.Medium)
	assert.Equal(t, "Long Hints", c.Levels[0].Rounds[0].HintsUsed)
	assert.Equal(t, 2025, c.RegistrationStartAt.Year())
	assert.Len(t, app.BuildSegmentQueue(c, ""), 4)
}

func TestReadContestFileRejectsBadDefinitions(t *testing.T) {
	_, err := readContestFile(writeFile(t, "name: no id\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = readContestFile(writeFile(t, "id: x\nlevels:\n  - level_seq: 1\n    game_type: trivia\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	rejected := map[string]string{
		"repeated level_seq":   "id: x\nlevels:\n  - level_seq: 1\n    game_type: matching\n  - level_seq: 1\n    game_type: quiz\n",
		"decreasing level_seq": "id: x\nlevels:\n  - level_seq: 2\n    game_type: matching\n  - level_seq: 1\n    game_type: quiz\n",
		"repeated round_seq":   "id: x\nlevels:\n  - level_seq: 1\n    game_type: quiz\n    rounds:\n      - round_seq: 1\n      - round_seq: 1\n",
		"repeated language":    "id: x\nsupported_languages: [en, es, en]\n",
		"unknown status":       "id: x\nstatus: live\n",
	}
	for name, body := range rejected {
		_, err := readContestFile(writeFile(t, body))
		assert.ErrorIs(t, err, domain.ErrInvalidInput, name)
	}

	c, err := readContestFile(writeFile(t, "id: x\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.ContestDraft, c.Status)
}

func TestImportContestNeedsAStore(t *testing.T) {
	var cfg config.Config
	err := importContest(context.Background(), cfg, writeFile(t, contestYAML), logger.Nop())
	assert.ErrorContains(t, err, "no contest store configured")
}

func TestSampleContestsArePlayable(t *testing.T) {
	demo := sampleContests()["demo"]
	require.NoError(t, app.CheckPlayable(demo, time.Now()))
	assert.Len(t, app.BuildSegmentQueue(demo, ""), 4)
}

func TestSampleContentFillsDemoRounds(t *testing.T) {
	ctx := context.Background()
	contests := memory.NewContestRepository(memory.NewStaticContestLoader(sampleContests()), time.Minute)
	content := app.NewContentService(contests, sampleContent())

	matching, err := content.FetchRoundContent(ctx, "demo", domain.Segment{Level: 1, Round: 1, Language: "es"}, domain.ContentFilters{})
	require.NoError(t, err)
	assert.Len(t, matching.Items, 6)

	quiz, err := content.FetchRoundContent(ctx, "demo", domain.Segment{Level: 2, Round: 1, Language: "en"}, domain.ContentFilters{})
	require.NoError(t, err)
	assert.Len(t, quiz.Items, 10)
	assert.Equal(t, 10, quiz.Allocation.Total())
}

func TestExampleContestFileParses(t *testing.T) {
	c, err := readContestFile(filepath.Join("..", "..", "config", "contest.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "spring-cup", c.ID)
	assert.Equal(t, 16, c.Eligibility.MaxAge)
	assert.Equal(t, []string{"IN", "US"}, c.Eligibility.AllowedCountries)
	require.NotNil(t, c.Levels[0].Rounds[0].ObjectCount)
	assert.Equal(t, 6, *c.Levels[0].Rounds[0].ObjectCount)
	assert.Len(t, app.BuildSegmentQueue(c, ""), 4)
}
