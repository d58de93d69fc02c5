package app

import (
	"math"
	"strings"

	"contest-service/internal/domain"
)

const (
	matchingPoints  = 40.0
	quizPoints      = 60.0
	volumeSaturates = 50.0
	hintFlipPenalty = 0.05

	ModeMatch = "match"
	ModeQuiz  = "quiz"
)

// DifficultyWeights are the quiz weights used by the mastery formula. Tags
// outside this table weigh 1.0.
var DifficultyWeights = map[string]float64{
	"low":       1.0,
	"easy":      1.0,
	"medium":    1.5,
	"high":      2.0,
	"hard":      2.0,
	"very_high": 3.0,
}

func DifficultyWeight(tag string) float64 {
	if w, ok := DifficultyWeights[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return w
	}
	return 1.0
}

// MasteryPoints converts a tally into a 0..100 score. A tier without attempts
// contributes nothing.
func MasteryPoints(t domain.MasteryTally) int {
	var tier1, tier2 float64
	if t.MatchingTotal > 0 {
		accuracy := float64(t.MatchingCorrect) / float64(t.MatchingTotal)
		volume := math.Min(1, float64(t.MatchingTotal)/volumeSaturates)
		hintIndependence := 1 - math.Min(1, float64(t.HintFlips)*hintFlipPenalty)
		tier1 = matchingPoints * (accuracy*0.60 + volume*0.20 + hintIndependence*0.20)
	}
	if t.QuizTotal > 0 {
		weighted := 0.0
		if t.QuizWeightTotal > 0 {
			weighted = t.QuizWeightCorrect / t.QuizWeightTotal
		}
		volume := math.Min(1, float64(t.QuizTotal)/volumeSaturates)
		tier2 = quizPoints * (weighted*0.80 + volume*0.20)
	}
	score := int(math.Round(tier1 + tier2))
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// TallyEvents folds raw events into a tally. Attempts count toward a tier by
// level sequence or mode; hint flips are summed over all hint interactions and
// any event carrying a translation id exposes that word.
func TallyEvents(events []domain.MasteryEvent) domain.MasteryTally {
	var t domain.MasteryTally
	seen := make(map[string]struct{})
	for _, ev := range events {
		switch ev.Type {
		case domain.EventInteractionAttempt:
			switch {
			case IsMatchingEvent(ev):
				t.MatchingTotal++
				if ev.Correct {
					t.MatchingCorrect++
				}
			case IsQuizEvent(ev):
				w := DifficultyWeight(ev.DifficultyLevel)
				t.QuizTotal++
				t.QuizWeightTotal += w
				if ev.Correct {
					t.QuizWeightCorrect += w
				}
			}
		case domain.EventHintInteraction:
			t.HintFlips += ev.HintFlips
		}
		if ev.TranslationID != "" {
			if _, ok := seen[ev.TranslationID]; !ok {
				seen[ev.TranslationID] = struct{}{}
				t.TranslationIDs = append(t.TranslationIDs, ev.TranslationID)
			}
		}
	}
	return t
}

func IsMatchingEvent(ev domain.MasteryEvent) bool {
	return ev.LevelSequence == domain.LevelSequenceMatching || ev.Mode == ModeMatch
}

func IsQuizEvent(ev domain.MasteryEvent) bool {
	return ev.LevelSequence == domain.LevelSequenceQuiz || ev.Mode == ModeQuiz
}

// CoveragePercent is the rounded share of approved vocabulary seen.
func CoveragePercent(exposed, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(exposed) / float64(total) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}
