package rag

import (
	"fmt"
	"math"
)

// CosineSimilarity returns dot(a,b)/(|a||b|). A zero vector on either side
// yields 0 rather than NaN.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	switch {
	case math.IsNaN(sim):
		return 0, nil
	case sim > 1:
		return 1, nil
	case sim < -1:
		return -1, nil
	}
	return sim, nil
}
