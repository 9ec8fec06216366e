package data

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoIdentityRepository implements IdentityRepository over the pessoas
// collection.
type MongoIdentityRepository struct {
	coll *mongo.Collection
}

// ListWithEmbeddings loads every identity with a non-empty embedding list,
// ordered by last_appearance descending. Recency ordering is a heuristic to
// shorten the candidate scan for near-real-time streams; correctness does
// not depend on it.
func (r *MongoIdentityRepository) ListWithEmbeddings(ctx context.Context) ([]Identity, error) {
	filter := bson.M{"embeddings": bson.M{"$exists": true, "$ne": bson.A{}}}
	opts := options.Find().SetSort(bson.D{{Key: "last_appearance", Value: -1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find identities: %w", err)
	}
	defer cur.Close(ctx)

	var out []Identity
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode identities: %w", err)
	}
	return out, nil
}

// Insert creates a brand-new identity document.
func (r *MongoIdentityRepository) Insert(ctx context.Context, identity *Identity) error {
	if identity.ImagePaths == nil {
		identity.ImagePaths = []string{}
	}
	if identity.Embeddings == nil {
		identity.Embeddings = [][]float64{}
	}
	if _, err := r.coll.InsertOne(ctx, identity); err != nil {
		return fmt.Errorf("insert identity %s: %w", identity.UUID, err)
	}
	return nil
}

// AppendAppearance pushes imagePath and embedding and sets last_appearance
// in a single update so |image_paths| == |embeddings| holds across crashes
// and concurrent consumers. The post-image is returned for the tags
// snapshot.
func (r *MongoIdentityRepository) AppendAppearance(ctx context.Context, uuid, imagePath string, embedding []float64, lastAppearance float64) (*Identity, error) {
	update := bson.M{
		"$push": bson.M{
			"image_paths": imagePath,
			"embeddings":  embedding,
		},
		"$set": bson.M{"last_appearance": lastAppearance},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Identity
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"uuid": uuid}, update, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("append appearance %s: %w", uuid, err)
	}
	return &updated, nil
}
