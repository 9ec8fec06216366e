package data

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collIdentities = "pessoas"
	collPresences  = "presencas"
	collFrames     = "frames"
	collCounters   = "counters"
)

// DB bundles the repository implementations over one Mongo database.
type DB struct {
	client     *mongo.Client
	Identities *MongoIdentityRepository
	Presences  *MongoPresenceRepository
	Frames     *MongoFrameAggregateRepository
	Counters   *MongoCounterRepository
}

// Connect opens the Mongo client, pings it and wires the repositories.
func Connect(ctx context.Context, uri, dbName string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(dbName)
	return &DB{
		client:     client,
		Identities: &MongoIdentityRepository{coll: db.Collection(collIdentities)},
		Presences:  &MongoPresenceRepository{coll: db.Collection(collPresences)},
		Frames:     &MongoFrameAggregateRepository{coll: db.Collection(collFrames)},
		Counters:   &MongoCounterRepository{coll: db.Collection(collCounters)},
	}, nil
}

// EnsureIndexes creates the unique index on frames.uuid that the aggregate
// first-insert race resolution relies on.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	_, err := d.Frames.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "uuid", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("frames uuid index: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}
