package mongo

import (
	"context"
	"errors"
	"fmt"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ContestStore keeps contest definitions as documents. It satisfies
// memory.ContestLoader so it can sit behind the cached repositories.
type ContestStore struct {
	collection *mongo.Collection
}

func NewContestStore(db *mongo.Database) *ContestStore {
	return &ContestStore{collection: db.Collection(ContestsCollection)}
}

func (s *ContestStore) LoadContest(ctx context.Context, contestID string) (domain.ContestDefinition, error) {
	c, err := s.find(ctx, contestID)
	if err != nil {
		return domain.ContestDefinition{}, err
	}
	if err := c.Validate(); err != nil {
		return domain.ContestDefinition{}, fmt.Errorf("stored contest %s is malformed: %v", contestID, err)
	}
	return c, nil
}

func (s *ContestStore) find(ctx context.Context, contestID string) (domain.ContestDefinition, error) {
	var c domain.ContestDefinition
	if err := s.collection.FindOne(ctx, bson.M{"_id": contestID}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ContestDefinition{}, domain.NotFoundf("contest %s not found", contestID)
		}
		return domain.ContestDefinition{}, fmt.Errorf("find contest: %w", err)
	}
	return c, nil
}

// SaveContest upserts c. The replace is conditional on the version read
// before, so a concurrent queue change surfaces as a conflict.
func (s *ContestStore) SaveContest(ctx context.Context, c domain.ContestDefinition) (domain.ContestDefinition, error) {
	var prev *domain.ContestDefinition
	stored, err := s.find(ctx, c.ID)
	switch {
	case err == nil:
		prev = &stored
	case !errors.Is(err, domain.ErrNotFound):
		return domain.ContestDefinition{}, err
	}

	next, err := app.PrepareContestSave(prev, c)
	if err != nil {
		return domain.ContestDefinition{}, err
	}

	filter := bson.M{"_id": next.ID}
	if prev != nil {
		filter["version"] = prev.Version
	}
	_, err = s.collection.ReplaceOne(ctx, filter, next, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ContestDefinition{}, fmt.Errorf("%w: contest %s was saved concurrently", domain.ErrConflict, next.ID)
		}
		return domain.ContestDefinition{}, fmt.Errorf("save contest: %w", err)
	}
	return next, nil
}

// SetContestStatus moves the status only if it still equals from.
func (s *ContestStore) SetContestStatus(ctx context.Context, contestID string, from, to domain.ContestStatus) (bool, error) {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": contestID, "status": from},
		bson.M{"$set": bson.M{"status": to}})
	if err != nil {
		return false, fmt.Errorf("update contest status: %w", err)
	}
	return res.MatchedCount > 0, nil
}
