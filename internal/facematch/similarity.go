package facematch

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDimensionMismatch = errors.New("embedding dimensions differ")
	ErrDegenerateVector  = errors.New("embedding has zero norm")
)

// CosineSimilarity returns dot(a,b) / (|a| |b|) in [-1, 1].
// Norms are always computed, the inputs need not be unit length.
func CosineSimilarity(a, b Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, ErrDegenerateVector
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(similarity) {
		// only reachable with NaN/Inf components
		return 0, ErrDegenerateVector
	}

	// Clamp to [-1, 1] to handle floating point errors
	return max(-1, min(1, similarity)), nil
}

// Normalize returns an L2-normalised copy of e.
func Normalize(e Embedding) (Embedding, error) {
	var norm float64
	for _, v := range e {
		norm += float64(v) * float64(v)
	}
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, ErrDegenerateVector
	}
	norm = math.Sqrt(norm)

	out := make(Embedding, len(e))
	for i, v := range e {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}
