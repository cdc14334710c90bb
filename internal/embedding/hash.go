// ABOUTME: Deterministic hash-seeded embedding backend for offline runs and tests
// ABOUTME: Identical texts map to identical vectors; unrelated texts are near-orthogonal
package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

type HashBackend struct {
	dims int
}

func NewHashBackend(dims int) *HashBackend {
	return &HashBackend{dims: dims}
}

func (h *HashBackend) Dimensions() int {
	return h.dims
}

func (h *HashBackend) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h *HashBackend) embed(text string) []float32 {
	f := fnv.New64a()
	f.Write([]byte(text))
	seed := f.Sum64()

	vec := make([]float32, h.dims)
	for i := range vec {
		// LCG step
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return Normalize(vec)
}
