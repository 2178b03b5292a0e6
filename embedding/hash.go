package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const DefaultHashDimension = 512

var tokenPattern = regexp.MustCompile(`\p{L}+|\p{N}+`)

// HashEmbedder is an offline bag-of-words embedder using the hashing
// trick. It needs no model download and no network, which makes it the
// default for local development and tests.
type HashEmbedder struct {
	dimension int
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}

	return &HashEmbedder{dimension}
}

func (e *HashEmbedder) Name() string {
	return "hash"
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vectors[i] = e.embed(text)
	}

	return vectors, nil
}

func (e *HashEmbedder) embed(text string) []float32 {
	vector := make([]float32, e.dimension)

	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		vector[0] = 1
		return vector
	}

	for _, token := range tokens {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()

		idx := int(sum % uint32(e.dimension))
		if sum&(1<<31) != 0 {
			vector[idx] -= 1
		} else {
			vector[idx] += 1
		}
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}

	if norm == 0 {
		vector[0] = 1
		return vector
	}

	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}

	return vector
}
