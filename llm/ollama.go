package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOllamaModel   = "llama3.2"
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaTimeout = 120 * time.Second
)

// OllamaGenerator calls the local Ollama generate API. Streaming responses
// arrive as one JSON object per line.
type OllamaGenerator struct {
	client  *http.Client
	baseURL string
	model   string
	options Options
}

func NewOllamaGenerator(cfg Config) *OllamaGenerator {
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultOllamaTimeout
	}

	return &OllamaGenerator{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		options: cfg.Options,
	}
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (g *OllamaGenerator) Name() string {
	return string(ProviderOllama) + "/" + g.model
}

func (g *OllamaGenerator) do(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	req := ollamaRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: stream,
	}

	opts := make(map[string]any)
	if t := g.options.Temperature; t != nil {
		opts["temperature"] = *t
	}

	if p := g.options.TopP; p != nil {
		opts["top_p"] = *p
	}

	if g.options.MaxTokens > 0 {
		opts["num_predict"] = g.options.MaxTokens
	}

	if len(opts) > 0 {
		req.Options = opts
	}

	body, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()

		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ollama returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	return resp, nil
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.do(ctx, prompt, false)
	if err != nil {
		return "", generationError(err)
	}
	defer resp.Body.Close()

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", generationError(err)
	}

	if result.Error != "" {
		return "", generationError(errors.New(result.Error))
	}

	return result.Response, nil
}

func (g *OllamaGenerator) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := g.do(ctx, prompt, true)
		if err != nil {
			yield("", generationError(err))
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk ollamaResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				yield("", generationError(err))
				return
			}

			if chunk.Error != "" {
				yield("", generationError(errors.New(chunk.Error)))
				return
			}

			if chunk.Response != "" {
				if !yield(chunk.Response, nil) {
					return
				}
			}

			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield("", generationError(err))
		}
	}
}
