package data

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoFrameAggregateRepository implements FrameAggregateRepository over the
// frames collection.
type MongoFrameAggregateRepository struct {
	coll *mongo.Collection
}

// Insert creates the aggregate row for a frame. The unique index on uuid
// turns the concurrent first-insert race into ErrDuplicateKey, which the
// caller resolves by falling back to AddPresence.
func (r *MongoFrameAggregateRepository) Insert(ctx context.Context, agg *FrameAggregate) error {
	if agg.ListaPresencas == nil {
		agg.ListaPresencas = []string{}
	}
	if _, err := r.coll.InsertOne(ctx, agg); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert frame aggregate %s: %w", agg.UUID, err)
	}
	return nil
}

// AddPresence bumps the recognized counter and appends the presence ref in
// one update. Increment and append commute, so interleaved callers on
// sibling detections of the same frame are safe in any order.
func (r *MongoFrameAggregateRepository) AddPresence(ctx context.Context, frameUUID, presenceID string) (bool, error) {
	update := bson.M{
		"$inc":  bson.M{"total_faces_reconhecidas": 1},
		"$push": bson.M{"lista_presencas": presenceID},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"uuid": frameUUID}, update)
	if err != nil {
		return false, fmt.Errorf("update frame aggregate %s: %w", frameUUID, err)
	}
	return res.MatchedCount > 0, nil
}
