package app

import "contest-service/internal/domain"

// Ledger is the append-only score history of one participation. A key
// (level, round, language) is recorded at most once.
type Ledger []domain.RoundScoreRecord

// Has reports whether a record exists for key.
func (l Ledger) Has(key domain.Segment) bool {
	for _, rec := range l {
		if rec.Key() == key {
			return true
		}
	}
	return false
}

// Append returns the ledger with rec added, or the unchanged ledger and
// ProgressAlreadyLogged when the key was already recorded.
func (l Ledger) Append(rec domain.RoundScoreRecord) (Ledger, domain.ProgressStatus) {
	if l.Has(rec.Key()) {
		return l, domain.ProgressAlreadyLogged
	}
	out := make(Ledger, len(l), len(l)+1)
	copy(out, l)
	return append(out, rec), domain.ProgressAppended
}

func (l Ledger) Total() int {
	total := 0
	for _, rec := range l {
		total += rec.Score
	}
	return total
}

func (l Ledger) TimeTaken() float64 {
	var total float64
	for _, rec := range l {
		total += rec.TimeTaken
	}
	return total
}

// ByLanguage groups score and time per language.
func (l Ledger) ByLanguage() map[string]domain.LanguageTotals {
	out := make(map[string]domain.LanguageTotals)
	for _, rec := range l {
		t := out[rec.Language]
		t.Score += rec.Score
		t.TimeTaken += rec.TimeTaken
		t.Rounds++
		out[rec.Language] = t
	}
	return out
}
