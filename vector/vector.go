package vector

import (
	"context"
	"errors"
	"math"
)

var ErrEmptyFilter = errors.New("delete filter must not be empty")

type Provider string

const (
	ProviderChromem Provider = "chromem"
	ProviderQdrant  Provider = "qdrant"
)

type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"apiKey"`
	UseTLS bool   `yaml:"useTLS"`
}

type Config struct {
	Provider   Provider     `yaml:"provider"`
	Persistent bool         `yaml:"persistent"`
	Path       string       `yaml:"path"`
	Collection string       `yaml:"collection"`
	Qdrant     QdrantConfig `yaml:"qdrant"`
}

type VectorDB interface {
	Collection(ctx context.Context, name string) (Collection, error)
	Close() error
}

// Collection is a named set of records. Records missing an embedding are
// embedded by the embedder bound to the collection.
type Collection interface {
	Upsert(ctx context.Context, records []Record) error

	// Search returns at most k results ranked by ascending distance. The
	// filter is an exact-match conjunction over metadata. An empty or
	// missing collection yields no results and no error.
	Search(ctx context.Context, query string, k int, filter map[string]string) ([]Result, error)

	// DeleteBy removes every record whose metadata matches the filter.
	DeleteBy(ctx context.Context, filter map[string]string) error

	Count(ctx context.Context) (int, error)
}

type Record struct {
	ID        string            `json:"id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding,omitempty"`
}

type Result struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Content  string            `json:"content"`
	Distance float64           `json:"distance"`
	Rank     int               `json:"rank"`
}

// MaxDistance is reported for results with non-positive cosine similarity.
const MaxDistance = 1e6

// Distance converts a cosine similarity into a distance such that
// 1/(1+distance/100) equals the similarity for similarities in (0, 1].
func Distance(similarity float64) float64 {
	if similarity <= 0 {
		return MaxDistance
	}

	if similarity > 1 {
		similarity = 1
	}

	return math.Min(100*(1-similarity)/similarity, MaxDistance)
}
