// Package vision holds the clients for the external face detector and
// embedding services plus the embedding-space math used by identity
// resolution.
package vision

import "math"

// CosineDistance computes 1 - cosine similarity between two vectors.
// Returns a value between 0 (identical direction) and 2 (opposite).
// Mismatched or zero-norm inputs yield the maximum distance so they never
// count as a match.
func CosineDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 2.0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}

	return 1 - sim
}
