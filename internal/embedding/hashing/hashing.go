package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"docembed/internal/embedding"
)

// DefaultDimension matches the output size of small sentence-transformer models.
const DefaultDimension = 384

// Embedder implements a local feature-hashing vectorizer.
// Terms are hashed into a fixed number of buckets with a sign bit, weighted
// by sublinear term frequency and L2 normalized, so no corpus pass is needed.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates a hashing embedder with the given output dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the hashed term-frequency embedding for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tf := make(map[string]int)
	for _, tok := range e.tokenize(text) {
		tf[tok]++
	}
	vec := make([]float32, e.dimension)
	for term, count := range tf {
		idx, sign := e.bucket(term)
		// Sublinear tf dampens repeated filler words
		vec[idx] += sign * float32(1+math.Log(float64(count)))
	}
	if isZero(vec) {
		// no usable terms, or colliding terms cancelled out
		idx, sign := e.bucket(fallbackTerm + strings.TrimSpace(text))
		vec[idx] = sign
	}
	return embedding.Normalize(vec), nil
}

// fallbackTerm prefixes the raw text of chunks that hash to a zero vector.
const fallbackTerm = "\x00raw:"

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func (e *Embedder) bucket(term string) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(term))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dimension))
	if sum>>63 == 1 {
		return idx, -1
	}
	return idx, 1
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
