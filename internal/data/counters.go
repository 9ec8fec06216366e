package data

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCounterRepository implements CounterRepository over the counters
// collection with an atomic find-and-increment.
type MongoCounterRepository struct {
	coll *mongo.Collection
}

// Next allocates the next sequence value for tag. The upserted post-image
// makes the first call return 1. Never derive frame numbers from a count
// query; this is the only allocation path.
func (r *MongoCounterRepository) Next(ctx context.Context, tag string) (int, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		SequenceValue int `bson:"sequence_value"`
	}
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": tag},
		bson.M{"$inc": bson.M{"sequence_value": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next sequence for %q: %w", tag, err)
	}
	return doc.SequenceValue, nil
}
