package app

import (
	"slices"
	"time"

	"contest-service/internal/domain"
)

// shapeLanguage stands in for the fallback language when comparing queues so
// contests without a language list still compare by levels and rounds.
const shapeLanguage = "*"

// SameQueue reports whether two definitions produce the same playable path.
func SameQueue(a, b domain.ContestDefinition) bool {
	return slices.Equal(BuildSegmentQueue(a, shapeLanguage), BuildSegmentQueue(b, shapeLanguage))
}

// PrepareContestSave validates next and decides the version it is stored
// with. prev is the stored definition or nil for a new contest. The version
// moves only when the queue changes, and a locked contest refuses such edits.
// A lock is never lifted by omitting locked_at.
func PrepareContestSave(prev *domain.ContestDefinition, next domain.ContestDefinition) (domain.ContestDefinition, error) {
	if next.Status == "" {
		next.Status = domain.ContestDraft
	}
	if err := next.Validate(); err != nil {
		return domain.ContestDefinition{}, err
	}
	if prev == nil {
		next.Version = 1
		return next, nil
	}

	if !next.Locked() {
		next.LockedAt = prev.LockedAt
	}
	next.Version = prev.Version
	if next.Version < 1 {
		next.Version = 1
	}
	if !SameQueue(*prev, next) {
		if prev.Locked() {
			return domain.ContestDefinition{}, domain.Forbiddenf("contest %s is locked since %s, its levels, rounds and languages can no longer change",
				next.ID, prev.LockedAt.UTC().Format(time.RFC3339))
		}
		next.Version++
	}
	return next, nil
}
