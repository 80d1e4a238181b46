// File: trustpay/database/mongo.go
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trustpay/config"
)

const kvCollection = "kv_entries"

type kvDocument struct {
	Key       string     `bson:"_id"`
	Value     string     `bson:"value"`
	ExpiresAt *time.Time `bson:"expiresAt,omitempty"`
}

// MongoStore is a KVStore backed by a MongoDB collection of key/value
// documents. Expiring entries rely on a TTL index on expiresAt, with a lazy
// check on read to cover the index's sweep granularity.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore connects to MongoDB using the application configuration and
// ensures the TTL index exists.
func NewMongoStore() (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(config.AppConfig.MongoURL)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(config.AppConfig.MongoDatabase).Collection(kvCollection)
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, fmt.Errorf("failed to create TTL index: %w", err)
	}
	return &MongoStore{coll: coll}, nil
}

func (s *MongoStore) Get(ctx context.Context, key string) (string, bool, error) {
	var doc kvDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	if doc.ExpiresAt != nil && !time.Now().Before(*doc.ExpiresAt) {
		return "", false, nil
	}
	return doc.Value, true, nil
}

func (s *MongoStore) Set(ctx context.Context, key, value string) error {
	return s.upsert(ctx, kvDocument{Key: key, Value: value})
}

func (s *MongoStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl)
	return s.upsert(ctx, kvDocument{Key: key, Value: value, ExpiresAt: &expiresAt})
}

func (s *MongoStore) upsert(ctx context.Context, doc kvDocument) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, opts); err != nil {
		return fmt.Errorf("failed to write key %q: %w", doc.Key, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}
