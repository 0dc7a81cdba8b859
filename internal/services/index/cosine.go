package index

import (
	"fmt"
	"math"
)

// cosineDistance returns 1 - cosine similarity. A zero vector is treated as
// orthogonal to everything (distance 1).
func cosineDistance(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d != %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 1, nil
	}
	return float32(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))), nil
}
