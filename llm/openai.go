package llm

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIGenerator talks to an OpenAI-compatible chat completions API. The
// API is used synchronously, so streaming is emulated line by line.
type OpenAIGenerator struct {
	client  openai.Client
	model   string
	options Options
}

func NewOpenAIGenerator(cfg Config) *OpenAIGenerator {
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIGenerator{
		client:  openai.NewClient(opts...),
		model:   model,
		options: cfg.Options,
	}
}

func (g *OpenAIGenerator) Name() string {
	return string(ProviderOpenAI) + "/" + g.model
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(g.model),
	}

	if t := g.options.Temperature; t != nil {
		params.Temperature = openai.Float(*t)
	}

	if p := g.options.TopP; p != nil {
		params.TopP = openai.Float(*p)
	}

	if g.options.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.options.MaxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", generationError(err)
	}

	if len(resp.Choices) == 0 {
		return "", generationError(errors.New("empty choices"))
	}

	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		text, err := g.Generate(ctx, prompt)
		if err != nil {
			yield("", err)
			return
		}

		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}

			if !yield(line+"\n", nil) {
				return
			}
		}
	}
}
