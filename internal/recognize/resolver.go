// Package recognize consumes detections messages, embeds each face crop and
// resolves it to a persistent identity, minting a new one when nothing in
// the gallery votes a match.
package recognize

import (
	"context"

	"presenca/internal/data"
	"presenca/internal/vision"
)

// Resolver decides whether an embedding belongs to a known identity.
type Resolver struct {
	identities data.IdentityRepository
	threshold  float64
	voteRatio  float64
}

// NewResolver builds a resolver. threshold is the model's cosine operating
// point; voteRatio is the fraction of an identity's stored embeddings that
// must agree before a match is declared.
func NewResolver(identities data.IdentityRepository, threshold, voteRatio float64) *Resolver {
	return &Resolver{identities: identities, threshold: threshold, voteRatio: voteRatio}
}

// Resolve scans candidates most-recently-seen first and returns the uuid of
// the first identity whose stored embeddings reach the vote ratio, or ""
// when nothing matches. A distance exactly at the threshold is not a hit.
//
// The vote ratio balances a single bad first capture (one embedding should
// not claim the face alone once the gallery grows) against supermajorities
// that would drift as appearances accumulate.
func (r *Resolver) Resolve(ctx context.Context, embedding []float64) (string, error) {
	candidates, err := r.identities.ListWithEmbeddings(ctx)
	if err != nil {
		return "", err
	}

	for _, cand := range candidates {
		m := len(cand.Embeddings)
		if m == 0 {
			continue
		}
		hits := 0
		for _, stored := range cand.Embeddings {
			if vision.CosineDistance(embedding, stored) < r.threshold {
				hits++
				if float64(hits)/float64(m) >= r.voteRatio {
					return cand.UUID, nil
				}
			}
		}
	}
	return "", nil
}
