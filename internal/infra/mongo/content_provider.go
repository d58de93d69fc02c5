package mongo

import (
	"context"
	"fmt"

	"contest-service/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Hint modes a matching round may force onto both hint fields.
const (
	HintsLong   = "Long Hints"
	HintsShort  = "Short Hints"
	HintsObject = "Object Name"
)

// quizPoolFactor oversamples translations so the allocator has room to
// honour the difficulty split.
const quizPoolFactor = 3

// ContentProvider samples approved translations. Matching rounds get one item
// per distinct object; quiz rounds get one item per question, tagged with the
// question's difficulty.
type ContentProvider struct {
	collection *mongo.Collection
}

func NewContentProvider(db *mongo.Database) *ContentProvider {
	return &ContentProvider{collection: db.Collection(TranslationsCollection)}
}

func (p *ContentProvider) FetchContent(ctx context.Context, req domain.ContentRequest) ([]domain.ContentItem, error) {
	if req.Count <= 0 {
		return nil, nil
	}
	match := approvedFilter(req.Segment.Language, req.Filters.OrgID)
	if req.Filters.Category != "" {
		match["object_category"] = req.Filters.Category
	}
	if req.Filters.Subject != "" {
		match["field_of_study"] = req.Filters.Subject
	}

	if req.GameType == domain.GameTypeQuiz {
		return p.quizItems(ctx, match, req.Count)
	}
	return p.matchingItems(ctx, match, req.Count, req.HintsUsed)
}

type matchingDoc struct {
	ObjectID        string `bson:"object_id"`
	ObjectName      string `bson:"object_name"`
	ObjectHint      string `bson:"object_hint"`
	ObjectShortHint string `bson:"object_short_hint"`
	TranslationID   string `bson:"translation_id"`
}

func (p *ContentProvider) matchingItems(ctx context.Context, match bson.M, count int, hintsUsed string) ([]domain.ContentItem, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":               "$object_name",
			"object_id":         bson.M{"$first": bson.M{"$toString": "$object_id"}},
			"object_name":       bson.M{"$first": "$object_name"},
			"object_hint":       bson.M{"$first": "$object_hint"},
			"object_short_hint": bson.M{"$first": "$object_short_hint"},
			"translation_id":    bson.M{"$first": bson.M{"$toString": "$_id"}},
		}}},
		{{Key: "$sample", Value: bson.M{"size": count}}},
	}
	cursor, err := p.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("sample matching content: %w", err)
	}
	var docs []matchingDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode matching content: %w", err)
	}

	items := make([]domain.ContentItem, 0, len(docs))
	for _, d := range docs {
		hint, shortHint := d.ObjectHint, d.ObjectShortHint
		if hintsUsed != "" {
			hint = pickHint(d, hintsUsed)
			shortHint = hint
		}
		items = append(items, domain.ContentItem{
			ID: d.TranslationID,
			Payload: map[string]any{
				"objectId":        d.ObjectID,
				"objectName":      d.ObjectName,
				"objectHint":      hint,
				"objectShortHint": shortHint,
				"translationId":   d.TranslationID,
			},
		})
	}
	return items, nil
}

// pickHint maps a round's hint mode to the field shown to players. Unknown
// modes fall back to the long hint.
func pickHint(d matchingDoc, mode string) string {
	switch mode {
	case HintsShort:
		return d.ObjectShortHint
	case HintsObject:
		return d.ObjectName
	default:
		return d.ObjectHint
	}
}

type quizDoc struct {
	TranslationID string `bson:"translation_id"`
	ObjectID      string `bson:"object_id"`
	ObjectName    string `bson:"object_name"`
	Index         int64  `bson:"index"`
	Question      bson.M `bson:"question"`
}

func (p *ContentProvider) quizItems(ctx context.Context, match bson.M, count int) ([]domain.ContentItem, error) {
	match["quiz_qa.0"] = bson.M{"$exists": true}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sample", Value: bson.M{"size": count * quizPoolFactor}}},
		{{Key: "$unwind", Value: bson.M{"path": "$quiz_qa", "includeArrayIndex": "index"}}},
		{{Key: "$project", Value: bson.M{
			"_id":            0,
			"translation_id": bson.M{"$toString": "$_id"},
			"object_id":      bson.M{"$toString": "$object_id"},
			"object_name":    1,
			"index":          1,
			"question":       "$quiz_qa",
		}}},
	}
	cursor, err := p.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("sample quiz content: %w", err)
	}
	var docs []quizDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode quiz content: %w", err)
	}

	items := make([]domain.ContentItem, 0, len(docs))
	for _, d := range docs {
		difficulty, _ := d.Question["difficulty_level"].(string)
		items = append(items, domain.ContentItem{
			ID:         fmt.Sprintf("%s:%d", d.TranslationID, d.Index),
			Difficulty: difficulty,
			Payload: map[string]any{
				"objectId":      d.ObjectID,
				"objectName":    d.ObjectName,
				"translationId": d.TranslationID,
				"question":      map[string]any(d.Question),
			},
		})
	}
	return items, nil
}
