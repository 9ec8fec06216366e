package data

import (
	"context"
	"errors"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when an insert hits a unique index; the
	// persistence worker uses it to resolve the first-insert race on frame
	// aggregates.
	ErrDuplicateKey = errors.New("duplicate key")
)

// IdentityRepository stores person clusters.
type IdentityRepository interface {
	// ListWithEmbeddings returns identities holding at least one embedding,
	// most recently seen first.
	ListWithEmbeddings(ctx context.Context) ([]Identity, error)
	// Insert creates a fresh identity (empty arrays, tags = [uuid]).
	Insert(ctx context.Context, identity *Identity) error
	// AppendAppearance atomically appends imagePath and embedding and sets
	// last_appearance in one update, returning the post-image.
	AppendAppearance(ctx context.Context, uuid, imagePath string, embedding []float64, lastAppearance float64) (*Identity, error)
}

// PresenceRepository stores recognition events.
type PresenceRepository interface {
	// Insert writes the presence and returns its id.
	Insert(ctx context.Context, p *Presence) (string, error)
}

// FrameAggregateRepository stores per-frame summary rows.
type FrameAggregateRepository interface {
	// Insert creates the aggregate row. Returns ErrDuplicateKey if a row for
	// the same frame uuid already exists.
	Insert(ctx context.Context, agg *FrameAggregate) error
	// AddPresence increments total_faces_reconhecidas and appends presenceID
	// in one update. Returns false if no aggregate matched frameUUID.
	AddPresence(ctx context.Context, frameUUID, presenceID string) (bool, error)
}

// CounterRepository allocates per-tag monotonic sequence numbers.
type CounterRepository interface {
	// Next returns the next strictly increasing value for tag, safe under
	// concurrent callers.
	Next(ctx context.Context, tag string) (int, error)
}
