// Package llm wraps answer generation backends behind one contract.
package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

var (
	ErrGeneration          = errors.New("generation failed")
	ErrUnsupportedProvider = errors.New("unsupported llm provider")
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderOpenAI, ProviderOllama:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, s)
	}
}

type Config struct {
	Provider Provider `yaml:"provider"`
	Model    string   `yaml:"model"`
	BaseURL  string   `yaml:"baseURL"`
	APIKey   string   `yaml:"apiKey"`
	Options  Options  `yaml:"options"`

	// Timeout bounds a whole local inference call, streaming included.
	Timeout time.Duration `yaml:"timeout"`
}

// Options are the sampling knobs shared by every backend. Zero values
// leave the backend default in place.
type Options struct {
	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"topP"`
	MaxTokens   int      `yaml:"maxTokens"`
}

// ParseOptions reads the free-form parameter mapping stored with a model
// config. Unknown keys are ignored.
func ParseOptions(params map[string]any) Options {
	var opts Options

	if v, ok := number(params["temperature"]); ok {
		opts.Temperature = &v
	}

	if v, ok := number(params["top_p"]); ok {
		opts.TopP = &v
	}

	if v, ok := number(params["max_tokens"]); ok {
		opts.MaxTokens = int(v)
	}

	return opts
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

type Generator interface {
	// Name identifies the backend as "{provider}/{model}".
	Name() string

	Generate(ctx context.Context, prompt string) (string, error)

	// Stream yields response fragments in order. A failure is yielded as
	// the final element and wraps ErrGeneration.
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

func New(cfg Config) (Generator, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIGenerator(cfg), nil

	case ProviderOllama, "":
		return NewOllamaGenerator(cfg), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

func generationError(err error) error {
	if errors.Is(err, ErrGeneration) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrGeneration, err)
}
