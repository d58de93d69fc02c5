package mongo

import (
	"context"
	"fmt"
	"sort"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// EventStore is the append-only mastery event stream. Tallies run as a single
// $facet aggregation so the four counters see the same snapshot.
type EventStore struct {
	collection *mongo.Collection
}

func NewEventStore(db *mongo.Database) *EventStore {
	return &EventStore{collection: db.Collection(EventsCollection)}
}

func (s *EventStore) AppendEvent(ctx context.Context, ev domain.MasteryEvent) error {
	if _, err := s.collection.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("insert mastery event: %w", err)
	}
	return nil
}

type tallyFacets struct {
	Matching []struct {
		Total   int `bson:"total"`
		Correct int `bson:"correct"`
	} `bson:"matching"`
	Quiz []struct {
		Total         int     `bson:"total"`
		WeightTotal   float64 `bson:"weight_total"`
		WeightCorrect float64 `bson:"weight_correct"`
	} `bson:"quiz"`
	Hints []struct {
		Flips int `bson:"flips"`
	} `bson:"hints"`
	Words []struct {
		ID string `bson:"_id"`
	} `bson:"words"`
}

func (s *EventStore) Tally(ctx context.Context, q domain.TallyQuery) (domain.MasteryTally, error) {
	match := bson.M{"user_id": q.UserID, "language": q.Language}
	if !q.Before.IsZero() {
		match["timestamp"] = bson.M{"$lt": q.Before}
	}

	matching := bson.M{
		"event_type": domain.EventInteractionAttempt,
		"$or": bson.A{
			bson.M{"level_sequence": domain.LevelSequenceMatching},
			bson.M{"mode": app.ModeMatch},
		},
	}
	// an attempt that qualifies as matching is never also counted as quiz
	quiz := bson.M{
		"event_type":     domain.EventInteractionAttempt,
		"level_sequence": bson.M{"$ne": domain.LevelSequenceMatching},
		"mode":           bson.M{"$ne": app.ModeMatch},
		"$or": bson.A{
			bson.M{"level_sequence": domain.LevelSequenceQuiz},
			bson.M{"mode": app.ModeQuiz},
		},
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$facet", Value: bson.M{
			"matching": bson.A{
				bson.M{"$match": matching},
				bson.M{"$group": bson.M{
					"_id":     nil,
					"total":   bson.M{"$sum": 1},
					"correct": bson.M{"$sum": bson.M{"$cond": bson.A{"$is_correct", 1, 0}}},
				}},
			},
			"quiz": bson.A{
				bson.M{"$match": quiz},
				bson.M{"$set": bson.M{"weight": weightSwitch()}},
				bson.M{"$group": bson.M{
					"_id":            nil,
					"total":          bson.M{"$sum": 1},
					"weight_total":   bson.M{"$sum": "$weight"},
					"weight_correct": bson.M{"$sum": bson.M{"$cond": bson.A{"$is_correct", "$weight", 0}}},
				}},
			},
			"hints": bson.A{
				bson.M{"$match": bson.M{"event_type": domain.EventHintInteraction}},
				bson.M{"$group": bson.M{"_id": nil, "flips": bson.M{"$sum": "$hint_flips"}}},
			},
			"words": bson.A{
				bson.M{"$match": bson.M{"translation_id": bson.M{"$exists": true, "$ne": ""}}},
				bson.M{"$group": bson.M{"_id": "$translation_id"}},
				bson.M{"$sort": bson.M{"_id": 1}},
			},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.MasteryTally{}, fmt.Errorf("aggregate mastery tally: %w", err)
	}
	var out []tallyFacets
	if err := cursor.All(ctx, &out); err != nil {
		return domain.MasteryTally{}, fmt.Errorf("decode mastery tally: %w", err)
	}

	var t domain.MasteryTally
	if len(out) == 0 {
		return t, nil
	}
	f := out[0]
	if len(f.Matching) > 0 {
		t.MatchingTotal = f.Matching[0].Total
		t.MatchingCorrect = f.Matching[0].Correct
	}
	if len(f.Quiz) > 0 {
		t.QuizTotal = f.Quiz[0].Total
		t.QuizWeightTotal = f.Quiz[0].WeightTotal
		t.QuizWeightCorrect = f.Quiz[0].WeightCorrect
	}
	if len(f.Hints) > 0 {
		t.HintFlips = f.Hints[0].Flips
	}
	for _, w := range f.Words {
		t.TranslationIDs = append(t.TranslationIDs, w.ID)
	}
	return t, nil
}

// weightSwitch mirrors app.DifficultyWeight as an aggregation expression.
func weightSwitch() bson.M {
	tag := bson.M{"$trim": bson.M{"input": bson.M{"$toLower": bson.M{"$ifNull": bson.A{"$difficulty_level", ""}}}}}

	tags := make([]string, 0, len(app.DifficultyWeights))
	for k := range app.DifficultyWeights {
		tags = append(tags, k)
	}
	sort.Strings(tags)

	branches := make(bson.A, 0, len(tags))
	for _, k := range tags {
		branches = append(branches, bson.M{
			"case": bson.M{"$eq": bson.A{tag, k}},
			"then": app.DifficultyWeights[k],
		})
	}
	return bson.M{"$switch": bson.M{"branches": branches, "default": 1.0}}
}
