package mongo

import (
	"context"
	"errors"
	"fmt"

	"contest-service/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ParticipationStore keeps one document per (contest, user). Every progression
// write is a single FindOneAndUpdate guarded by id, contest and revision, so
// the record append and the total never diverge.
type ParticipationStore struct {
	collection *mongo.Collection
}

func NewParticipationStore(db *mongo.Database) *ParticipationStore {
	return &ParticipationStore{collection: db.Collection(ParticipationsCollection)}
}

func (s *ParticipationStore) Create(ctx context.Context, p domain.Participation) error {
	if p.RoundScores == nil {
		p.RoundScores = []domain.RoundScoreRecord{}
	}
	if _, err := s.collection.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyRegistered
		}
		return fmt.Errorf("insert participation: %w", err)
	}
	return nil
}

func (s *ParticipationStore) Find(ctx context.Context, contestID, userID string) (domain.Participation, error) {
	var p domain.Participation
	err := s.collection.FindOne(ctx, bson.M{"contest_id": contestID, "user_id": userID}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Participation{}, domain.ErrNotRegistered
		}
		return domain.Participation{}, fmt.Errorf("find participation: %w", err)
	}
	return p, nil
}

func (s *ParticipationStore) CountByContest(ctx context.Context, contestID string) (int, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{"contest_id": contestID})
	if err != nil {
		return 0, fmt.Errorf("count participations: %w", err)
	}
	return int(n), nil
}

func (s *ParticipationStore) Update(ctx context.Context, p domain.Participation, expectedRevision int64) (domain.Participation, error) {
	filter := bson.M{
		"_id":        p.ID,
		"contest_id": p.ContestID,
		"revision":   expectedRevision,
	}
	scores := p.RoundScores
	if scores == nil {
		scores = []domain.RoundScoreRecord{}
	}
	update := bson.M{"$set": bson.M{
		"status":               p.Status,
		"current_level":        p.CurrentLevel,
		"current_round":        p.CurrentRound,
		"current_language":     p.CurrentLanguage,
		"definition_version":   p.DefinitionVersion,
		"incomplete_attempts":  p.IncompleteAttempts,
		"round_scores":         scores,
		"total_score":          p.TotalScore,
		"contest_completed":    p.ContestCompleted,
		"contest_completed_at": p.ContestCompletedAt,
		"last_active_at":       p.LastActiveAt,
		"timeline":             p.Timeline,
		"revision":             expectedRevision + 1,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var stored domain.Participation
	if err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Participation{}, domain.ErrConflict
		}
		return domain.Participation{}, fmt.Errorf("update participation: %w", err)
	}
	return stored, nil
}

// LeaderboardRows returns ranking input in registration order.
func (s *ParticipationStore) LeaderboardRows(ctx context.Context, contestID string) ([]domain.LeaderboardRow, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"contest_id": contestID}}},
		{{Key: "$sort", Value: bson.D{{Key: "registered_at", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$project", Value: bson.M{
			"user_id":           1,
			"display_name":      1,
			"total_score":       1,
			"contest_completed": 1,
			"round_scores":      1,
		}}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate leaderboard: %w", err)
	}
	var rows []domain.LeaderboardRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return rows, nil
}
