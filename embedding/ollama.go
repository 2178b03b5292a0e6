package embedding

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

const (
	DefaultOllamaModel   = "nomic-embed-text"
	DefaultOllamaBaseURL = "http://localhost:11434/api"
)

// OllamaEmbedder calls a local Ollama server one text at a time.
type OllamaEmbedder struct {
	model string
	embed chromem.EmbeddingFunc
}

func NewOllamaEmbedder(model, baseURL string) *OllamaEmbedder {
	if model == "" {
		model = DefaultOllamaModel
	}

	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}

	return &OllamaEmbedder{
		model: model,
		embed: chromem.NewEmbeddingFuncOllama(model, baseURL),
	}
}

func (e *OllamaEmbedder) Name() string {
	return e.model
}

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}

		vectors[i] = v
	}

	return vectors, nil
}
