package embedding

import (
	"context"
	"math"
)

// Embedder converts free text into a numeric vector representation.
// Implementations return one pooled, unit-length vector per call and
// keep the same dimension for the lifetime of the instance.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Loader is implemented by embedders that need a one-time warm-up
// (model download, session creation) before the first Embed call.
type Loader interface {
	Load(ctx context.Context) error
}

// Normalize scales v to unit L2 norm in place and returns it.
// Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
