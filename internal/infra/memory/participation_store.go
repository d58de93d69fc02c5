package memory

import (
	"context"
	"sync"

	"contest-service/internal/domain"
)

// ParticipationStore is an in-memory implementation of app.ParticipationStore.
// Updates are conditional on the stored revision, matching the document store.
type ParticipationStore struct {
	mu    sync.RWMutex
	byKey map[participationKey]*domain.Participation
	order map[string][]participationKey
	byID  map[string]participationKey
}

type participationKey struct {
	contestID string
	userID    string
}

func NewParticipationStore() *ParticipationStore {
	return &ParticipationStore{
		byKey: make(map[participationKey]*domain.Participation),
		order: make(map[string][]participationKey),
		byID:  make(map[string]participationKey),
	}
}

func (s *ParticipationStore) Create(_ context.Context, p domain.Participation) error {
	key := participationKey{contestID: p.ContestID, userID: p.UserID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[key]; ok {
		return domain.ErrAlreadyRegistered
	}
	stored := p.Clone()
	s.byKey[key] = &stored
	s.byID[p.ID] = key
	s.order[p.ContestID] = append(s.order[p.ContestID], key)
	return nil
}

func (s *ParticipationStore) Find(_ context.Context, contestID, userID string) (domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byKey[participationKey{contestID: contestID, userID: userID}]
	if !ok {
		return domain.Participation{}, domain.ErrNotRegistered
	}
	return p.Clone(), nil
}

func (s *ParticipationStore) CountByContest(_ context.Context, contestID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order[contestID]), nil
}

func (s *ParticipationStore) Update(_ context.Context, p domain.Participation, expectedRevision int64) (domain.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[p.ID]
	if !ok || key.contestID != p.ContestID {
		return domain.Participation{}, domain.ErrConflict
	}
	current := s.byKey[key]
	if current.Revision != expectedRevision {
		return domain.Participation{}, domain.ErrConflict
	}
	next := p.Clone()
	next.UserID = current.UserID
	next.Revision = expectedRevision + 1
	s.byKey[key] = &next
	return next.Clone(), nil
}

func (s *ParticipationStore) LeaderboardRows(_ context.Context, contestID string) ([]domain.LeaderboardRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.order[contestID]
	rows := make([]domain.LeaderboardRow, 0, len(keys))
	for _, key := range keys {
		p := s.byKey[key]
		rows = append(rows, domain.LeaderboardRow{
			ParticipationID: p.ID,
			UserID:          p.UserID,
			DisplayName:     p.DisplayName,
			TotalScore:      p.TotalScore,
			Completed:       p.ContestCompleted,
			RoundScores:     append([]domain.RoundScoreRecord(nil), p.RoundScores...),
		})
	}
	return rows, nil
}
