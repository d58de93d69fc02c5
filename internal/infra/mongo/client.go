package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names.
const (
	ParticipationsCollection = "contest_participants"
	EventsCollection         = "event_analytics"
	TranslationsCollection   = "translations"
	ContestsCollection       = "contests"
)

// Connect opens a client and verifies the server answers a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the stores rely on. The unique
// (contest_id, user_id) index is what makes registration idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	participations := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "contest_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "contest_id", Value: 1}, {Key: "registered_at", Value: 1}, {Key: "_id", Value: 1}},
		},
	}
	if _, err := db.Collection(ParticipationsCollection).Indexes().CreateMany(ctx, participations); err != nil {
		return fmt.Errorf("create participation indexes: %w", err)
	}

	events := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "language", Value: 1}, {Key: "timestamp", Value: -1}}},
	}
	if _, err := db.Collection(EventsCollection).Indexes().CreateMany(ctx, events); err != nil {
		return fmt.Errorf("create event indexes: %w", err)
	}
	return nil
}
