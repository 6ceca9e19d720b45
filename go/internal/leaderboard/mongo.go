package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/pitchtank/go/internal/dbconfig"
	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const pitchesCollection = "pitches"

// MongoStore keeps results in the pitches collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoStore(ctx context.Context, cfg dbconfig.MongoConfig) (*MongoStore, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(10).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(cfg.Database).Collection(pitchesCollection)
	_, err = collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "result", Value: 1}, {Key: "deal_amount", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to create leaderboard indexes")
	}

	log.Info().Str("database", cfg.Database).Msg("connected to mongo leaderboard")
	return &MongoStore{client: client, collection: collection}, nil
}

func (s *MongoStore) Record(ctx context.Context, e Entry) error {
	if _, err := s.collection.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("failed to record result %s: %w", e.ID, err)
	}
	return nil
}

func (s *MongoStore) Top(ctx context.Context, limit int) ([]Entry, error) {
	filter := bson.M{"result": models.OutcomeDeal}
	opts := options.Find().
		SetSort(bson.D{{Key: "deal_amount", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode leaderboard: %w", err)
	}
	return entries, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
