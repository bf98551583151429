package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// MongoStore mirrors records into a MongoDB collection, one document per
// identity key.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	keyField   string
	count      int
	logger     *slog.Logger
}

// NewMongoStore connects to MongoDB and pings it before returning.
func NewMongoStore(uri, database, collection, keyField string, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StoreError{Backend: "mongodb", Op: "connect", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, &types.StoreError{Backend: "mongodb", Op: "connect", Err: err}
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		keyField:   keyField,
		logger:     logger.With("component", "mongo_store"),
	}, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

// ExistingKeys returns the distinct identity keys present in the
// collection.
func (s *MongoStore) ExistingKeys(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	values, err := s.collection.Distinct(ctx, s.keyField, bson.D{})
	if err != nil {
		return nil, &types.StoreError{Backend: "mongodb", Op: "keys", Err: err}
	}

	keys := make(map[string]struct{}, len(values))
	for _, v := range values {
		if k, ok := v.(string); ok && k != "" {
			keys[k] = struct{}{}
		}
	}
	return keys, nil
}

// Merge upserts one document per record, keyed on the identity field.
// The appendMode flag has no meaning here: the collection always holds
// the union of everything ever merged.
func (s *MongoStore) Merge(ctx context.Context, records []*types.Record, _ bool) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	upserted := 0
	for _, rec := range records {
		key := rec.Key(s.keyField)
		if key == "" {
			continue
		}

		doc := make(map[string]any, len(rec.Fields)+2)
		for k, v := range rec.Fields {
			doc[k] = v
		}
		doc["_source"] = rec.Source
		doc["_scraped_at"] = rec.ScrapedAt

		filter := bson.D{{Key: s.keyField, Value: key}}
		if _, err := s.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true)); err != nil {
			return &types.StoreError{Backend: "mongodb", Op: "write", Err: fmt.Errorf("upsert %q: %w", key, err)}
		}
		upserted++
	}

	s.count += upserted
	s.logger.Debug("records mirrored to mongodb", "count", upserted, "total", s.count)
	return nil
}

func (s *MongoStore) Close() error {
	s.logger.Info("mongodb mirror closing", "records_mirrored", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
