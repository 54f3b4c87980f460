package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"esgkb/internal/port"
)

// MockEmbedder produces deterministic vectors without network access. Each
// rune of the input is hashed into a bucket, so texts sharing vocabulary get
// similar vectors. Only for tests and offline experiments.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, e.dimension)
		for _, r := range text {
			h := fnv.New32a()
			var buf [4]byte
			buf[0] = byte(r)
			buf[1] = byte(r >> 8)
			buf[2] = byte(r >> 16)
			buf[3] = byte(r >> 24)
			h.Write(buf[:])
			v[int(h.Sum32())%e.dimension]++
		}
		normalize(v)
		embeddings[i] = v
	}
	return embeddings, nil
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}

var _ port.Embedder = (*MockEmbedder)(nil)
