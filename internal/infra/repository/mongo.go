package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository[T any] struct {
	mongo *mongo.Database
}

func NewMongoRepository[T any](mongo *mongo.Database) *MongoRepository[T] {
	return &MongoRepository[T]{mongo: mongo}
}

// Upsert replaces the document for sessionID, inserting it when absent, so
// archiving the same session twice keeps a single record.
func (r *MongoRepository[T]) Upsert(ctx context.Context, collectionName string, sessionID string, entity T) (T, error) {
	collection := r.mongo.Collection(collectionName)
	filter := bson.M{"session_id": sessionID}

	_, err := collection.ReplaceOne(ctx, filter, entity, options.Replace().SetUpsert(true))
	return entity, err
}

func (r *MongoRepository[T]) FindBySessionID(ctx context.Context, collectionName string, sessionID string) (T, error) {
	var entity T
	collection := r.mongo.Collection(collectionName)
	filter := bson.M{"session_id": sessionID}
	err := collection.FindOne(ctx, filter).Decode(&entity)
	return entity, err
}
