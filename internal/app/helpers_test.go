package app_test

import (
	"time"

	"contest-service/internal/domain"
)

var testNow = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// twoLevelContest has 2 levels with one round each, played in en then es.
func twoLevelContest() domain.ContestDefinition {
	return domain.ContestDefinition{
		ID:                    "contest-1",
		Name:                  "Word Sprint",
		Status:                domain.ContestActive,
		Version:               1,
		SupportedLanguages:    []string{"en", "es"},
		MaxIncompleteAttempts: 3,
		Levels: []domain.Level{
			{Seq: 1, GameType: domain.GameTypeMatching, Rounds: []domain.Round{{Seq: 1, QuestionCount: 4, TimeLimitSeconds: 60}}},
			{Seq: 2, GameType: domain.GameTypeQuiz, Rounds: []domain.Round{{
				Seq:                    1,
				QuestionCount:          10,
				TimeLimitSeconds:       90,
				DifficultyDistribution: domain.DifficultyDistribution{Easy: 1, Medium: 1, Hard: 1},
			}}},
		},
	}
}

func seg(level, round int, lang string) domain.Segment {
	return domain.Segment{Level: level, Round: round, Language: lang}
}

func applied(contestID, userID string) domain.Participation {
	return domain.Participation{
		ID:        "p-" + userID,
		ContestID: contestID,
		UserID:    userID,
		Status:    domain.StatusApplied,
	}
}
