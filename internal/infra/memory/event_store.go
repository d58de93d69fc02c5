package memory

import (
	"context"
	"sync"

	"contest-service/internal/app"
	"contest-service/internal/domain"
)

// EventStore keeps mastery events in memory and tallies them with the same
// rules the document store aggregation applies.
type EventStore struct {
	mu     sync.RWMutex
	events []domain.MasteryEvent
}

func NewEventStore() *EventStore {
	return &EventStore{}
}

func (s *EventStore) AppendEvent(_ context.Context, ev domain.MasteryEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *EventStore) Tally(_ context.Context, q domain.TallyQuery) (domain.MasteryTally, error) {
	s.mu.RLock()
	matched := make([]domain.MasteryEvent, 0, len(s.events))
	for _, ev := range s.events {
		if ev.UserID != q.UserID || ev.Language != q.Language {
			continue
		}
		if !q.Before.IsZero() && !ev.Timestamp.Before(q.Before) {
			continue
		}
		matched = append(matched, ev)
	}
	s.mu.RUnlock()
	return app.TallyEvents(matched), nil
}

// Vocabulary is a fixed set of approved translation ids per language and org.
type Vocabulary struct {
	mu    sync.RWMutex
	words map[vocabKey]map[string]struct{}
}

type vocabKey struct {
	language string
	orgID    string
}

func NewVocabulary() *Vocabulary {
	return &Vocabulary{words: make(map[vocabKey]map[string]struct{})}
}

// Approve marks translation ids as approved for language within orgID ("" is public).
func (v *Vocabulary) Approve(language, orgID string, translationIDs ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := vocabKey{language: language, orgID: orgID}
	set, ok := v.words[key]
	if !ok {
		set = make(map[string]struct{})
		v.words[key] = set
	}
	for _, id := range translationIDs {
		set[id] = struct{}{}
	}
}

func (v *Vocabulary) ApprovedWordCount(_ context.Context, language, orgID string) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.words[vocabKey{language: language, orgID: orgID}]), nil
}

func (v *Vocabulary) CountApprovedAmong(_ context.Context, language, orgID string, translationIDs []string) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	set := v.words[vocabKey{language: language, orgID: orgID}]
	n := 0
	for _, id := range translationIDs {
		if _, ok := set[id]; ok {
			n++
		}
	}
	return n, nil
}
