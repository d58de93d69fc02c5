package app

import (
	"sort"
	"time"

	"contest-service/internal/domain"
)

// Rank orders rows by total score, highest first. Ties keep the input order.
// GlobalAverageTime is the mean total time of participants who completed the
// contest and is computed before limit is applied. limit <= 0 keeps all rows.
func Rank(contestID string, rows []domain.LeaderboardRow, limit int, now time.Time) domain.Leaderboard {
	ordered := append([]domain.LeaderboardRow(nil), rows...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TotalScore > ordered[j].TotalScore
	})

	var completedTime float64
	completed := 0
	for _, row := range ordered {
		if row.Completed {
			completedTime += Ledger(row.RoundScores).TimeTaken()
			completed++
		}
	}

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}

	entries := make([]domain.LeaderboardEntry, 0, len(ordered))
	for i, row := range ordered {
		scores := make(map[string]int)
		times := make(map[string]float64)
		for lang, t := range Ledger(row.RoundScores).ByLanguage() {
			scores[lang] = t.Score
			times[lang] = t.TimeTaken
		}
		entries = append(entries, domain.LeaderboardEntry{
			Rank:             i + 1,
			ParticipationID:  row.ParticipationID,
			UserID:           row.UserID,
			DisplayName:      row.DisplayName,
			TotalScore:       row.TotalScore,
			Completed:        row.Completed,
			PerLanguageScore: scores,
			PerLanguageTime:  times,
		})
	}

	lb := domain.Leaderboard{
		ContestID: contestID,
		Entries:   entries,
		UpdatedAt: now,
	}
	if completed > 0 {
		lb.GlobalAverageTime = completedTime / float64(completed)
	}
	return lb
}

// MarkViewer returns lb with the entries of userID flagged. Entries are copied
// so cached standings stay viewer independent.
func MarkViewer(lb domain.Leaderboard, userID string) domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, len(lb.Entries))
	for i, e := range lb.Entries {
		e.IsCurrentUser = userID != "" && e.UserID == userID
		entries[i] = e
	}
	lb.Entries = entries
	return lb
}
