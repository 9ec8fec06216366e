package data

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoPresenceRepository implements PresenceRepository over the presencas
// collection.
type MongoPresenceRepository struct {
	coll *mongo.Collection
}

// Insert writes one presence document and returns its hex object id.
func (r *MongoPresenceRepository) Insert(ctx context.Context, p *Presence) (string, error) {
	res, err := r.coll.InsertOne(ctx, p)
	if err != nil {
		return "", fmt.Errorf("insert presence: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Sprintf("%v", res.InsertedID), nil
	}
	return oid.Hex(), nil
}
