// Package embedding maps text batches to fixed-length vectors.
package embedding

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
	ErrCountMismatch       = errors.New("embedding count does not match input count")
)

type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	ProviderHash   Provider = "hash"
)

type Config struct {
	Provider  Provider `yaml:"provider"`
	Model     string   `yaml:"model"`
	BaseURL   string   `yaml:"baseURL"`
	APIKey    string   `yaml:"apiKey"`
	Dimension int      `yaml:"dimension"`
	BatchSize int      `yaml:"batchSize"`
}

// Embedder is order preserving: vector i embeds text i. An empty batch
// yields an empty result.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// New selects the embedder variant once. The returned embedder defers the
// construction of the backing model until its first use.
func New(cfg Config) (Embedder, error) {
	var factory func() (Embedder, error)

	switch cfg.Provider {
	case ProviderOllama:
		factory = func() (Embedder, error) {
			return NewOllamaEmbedder(cfg.Model, cfg.BaseURL), nil
		}

	case ProviderOpenAI:
		factory = func() (Embedder, error) {
			return NewOpenAIEmbedder(cfg.Model, cfg.APIKey, cfg.BaseURL, cfg.BatchSize)
		}

	case ProviderHash, "":
		factory = func() (Embedder, error) {
			return NewHashEmbedder(cfg.Dimension), nil
		}

	default:
		return nil, ErrUnsupportedProvider
	}

	name := cfg.Model
	if name == "" {
		name = string(cfg.Provider)
	}

	return Lazy(name, factory), nil
}

// Lazy wraps an expensive embedder so it is built on the first Embed call
// and reused afterwards. A failed construction is retried on the next call.
func Lazy(name string, factory func() (Embedder, error)) Embedder {
	return &lazyEmbedder{
		name:    name,
		factory: factory,
	}
}

type lazyEmbedder struct {
	name    string
	factory func() (Embedder, error)

	mu       sync.Mutex
	embedder Embedder
}

func (l *lazyEmbedder) Name() string {
	return l.name
}

func (l *lazyEmbedder) get() (Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.embedder != nil {
		return l.embedder, nil
	}

	e, err := l.factory()
	if err != nil {
		return nil, err
	}

	l.embedder = e
	return e, nil
}

func (l *lazyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e, err := l.get()
	if err != nil {
		return nil, err
	}

	vectors, err := e.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, ErrCountMismatch
	}

	return vectors, nil
}
