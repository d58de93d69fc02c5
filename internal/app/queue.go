package app

import (
	"sort"

	"contest-service/internal/domain"
)

// BuildSegmentQueue flattens a contest into its single playable path: levels by
// level_seq, rounds by round_seq, then languages in declared order. When the
// contest declares no languages, fallbackLanguage is used for every round.
func BuildSegmentQueue(contest domain.ContestDefinition, fallbackLanguage string) []domain.Segment {
	languages := contest.SupportedLanguages
	if len(languages) == 0 {
		if fallbackLanguage == "" {
			return nil
		}
		languages = []string{fallbackLanguage}
	}

	levels := append([]domain.Level(nil), contest.Levels...)
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Seq < levels[j].Seq })

	var queue []domain.Segment
	for _, lvl := range levels {
		rounds := append([]domain.Round(nil), lvl.Rounds...)
		sort.SliceStable(rounds, func(i, j int) bool { return rounds[i].Seq < rounds[j].Seq })
		for _, rnd := range rounds {
			for _, lang := range languages {
				queue = append(queue, domain.Segment{Level: lvl.Seq, Round: rnd.Seq, Language: lang})
			}
		}
	}
	return queue
}

// segmentIndex returns the position of s in queue or -1.
func segmentIndex(queue []domain.Segment, s domain.Segment) int {
	for i, q := range queue {
		if q == s {
			return i
		}
	}
	return -1
}
