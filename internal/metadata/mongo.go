package metadata

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hyperjump/kensaku/internal/backend"
)

const (
	descriptorCollection = "indices"
	chunkCollection      = "chunks"
)

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	client      *mongo.Client
	descriptors *mongo.Collection
	chunks      *mongo.Collection
}

// NewMongoStore connects to MongoDB and ensures the indexes the store relies
// on: a unique (backend, index_name) key for descriptors and a
// (backend, index_name, handle) key for handle lookup.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	db := client.Database(database)
	s := &MongoStore{
		client:      client,
		descriptors: db.Collection(descriptorCollection),
		chunks:      db.Collection(chunkCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.descriptors.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "backend", Value: 1}, {Key: "index_name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create descriptor index: %w", err)
	}
	_, err = s.chunks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "backend", Value: 1}, {Key: "index_name", Value: 1}, {Key: "handle", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create chunk handle index: %w", err)
	}
	_, err = s.chunks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "chunk_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create chunk id index: %w", err)
	}
	return nil
}

// CreateDescriptor inserts a descriptor, failing on a duplicate name.
func (s *MongoStore) CreateDescriptor(ctx context.Context, desc *IndexDescriptor) error {
	_, err := s.descriptors.InsertOne(ctx, desc)
	if mongo.IsDuplicateKeyError(err) {
		return backend.ErrAlreadyExists
	}
	return err
}

// GetDescriptor returns the descriptor for (backendName, indexName).
func (s *MongoStore) GetDescriptor(ctx context.Context, backendName, indexName string) (*IndexDescriptor, error) {
	var desc IndexDescriptor
	err := s.descriptors.FindOne(ctx, descriptorFilter(backendName, indexName)).Decode(&desc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &desc, nil
}

// ListDescriptors returns all descriptors across backends.
func (s *MongoStore) ListDescriptors(ctx context.Context) ([]*IndexDescriptor, error) {
	cur, err := s.descriptors.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*IndexDescriptor
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceDescriptor atomically replaces the whole descriptor record.
func (s *MongoStore) ReplaceDescriptor(ctx context.Context, desc *IndexDescriptor) error {
	res, err := s.descriptors.ReplaceOne(ctx, descriptorFilter(desc.Backend, desc.IndexName), desc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return backend.ErrNotFound
	}
	return nil
}

// DeleteDescriptor removes the descriptor for (backendName, indexName).
func (s *MongoStore) DeleteDescriptor(ctx context.Context, backendName, indexName string) error {
	res, err := s.descriptors.DeleteOne(ctx, descriptorFilter(backendName, indexName))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return backend.ErrNotFound
	}
	return nil
}

// InsertChunks batch-inserts chunk records.
func (s *MongoStore) InsertChunks(ctx context.Context, records []*ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, len(records))
	for i, r := range records {
		docs[i] = r
	}
	_, err := s.chunks.InsertMany(ctx, docs)
	return err
}

// ChunkByHandle returns the chunk record with the given integer handle.
func (s *MongoStore) ChunkByHandle(ctx context.Context, backendName, indexName string, handle int64) (*ChunkRecord, error) {
	filter := bson.D{
		{Key: "backend", Value: backendName},
		{Key: "index_name", Value: indexName},
		{Key: "handle", Value: handle},
	}
	var rec ChunkRecord
	err := s.chunks.FindOne(ctx, filter).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteChunks removes all chunk records of an index.
func (s *MongoStore) DeleteChunks(ctx context.Context, backendName, indexName string) error {
	_, err := s.chunks.DeleteMany(ctx, descriptorFilter(backendName, indexName))
	return err
}

// CountChunks returns the number of chunk records in an index.
func (s *MongoStore) CountChunks(ctx context.Context, backendName, indexName string) (int64, error) {
	return s.chunks.CountDocuments(ctx, descriptorFilter(backendName, indexName))
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func descriptorFilter(backendName, indexName string) bson.D {
	return bson.D{
		{Key: "backend", Value: backendName},
		{Key: "index_name", Value: indexName},
	}
}
