package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const approvedStatus = "Approved"

// Vocabulary counts approved translations. Public content has no org id, so
// an empty orgID matches documents where org_id is missing, null or empty.
type Vocabulary struct {
	collection *mongo.Collection
}

func NewVocabulary(db *mongo.Database) *Vocabulary {
	return &Vocabulary{collection: db.Collection(TranslationsCollection)}
}

func (v *Vocabulary) ApprovedWordCount(ctx context.Context, language, orgID string) (int, error) {
	n, err := v.collection.CountDocuments(ctx, approvedFilter(language, orgID))
	if err != nil {
		return 0, fmt.Errorf("count approved words: %w", err)
	}
	return int(n), nil
}

func (v *Vocabulary) CountApprovedAmong(ctx context.Context, language, orgID string, translationIDs []string) (int, error) {
	if len(translationIDs) == 0 {
		return 0, nil
	}
	filter := approvedFilter(language, orgID)
	filter["_id"] = bson.M{"$in": idCandidates(translationIDs)}
	n, err := v.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count exposed words: %w", err)
	}
	return int(n), nil
}

func approvedFilter(language, orgID string) bson.M {
	filter := bson.M{
		"requested_language": language,
		"translation_status": approvedStatus,
	}
	if orgID != "" {
		filter["org_id"] = orgID
	} else {
		filter["$or"] = publicOrg()
	}
	return filter
}

func publicOrg() bson.A {
	return bson.A{
		bson.M{"org_id": bson.M{"$exists": false}},
		bson.M{"org_id": nil},
		bson.M{"org_id": ""},
	}
}

// idCandidates matches translation ids stored either as strings or as
// ObjectIDs.
func idCandidates(ids []string) bson.A {
	out := make(bson.A, 0, len(ids)*2)
	for _, id := range ids {
		out = append(out, id)
		if oid, err := bson.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}
