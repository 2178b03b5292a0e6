package docrag

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flarexio/docrag/llm"
	"github.com/flarexio/docrag/vector"
)

const (
	NoResultsAnswer = "I don't have relevant information to answer your question."

	previewLength = 300
)

const promptTemplate = `You are a helpful assistant. Answer the question using only the information in the context below. If the context does not contain the answer, say that you don't know. Cite the documents you use by their id, like [1] or [2].

Context:
%s

Question: %s

Answer:`

// Score maps a vector index distance onto (0, 1]; smaller distances score
// higher.
func Score(distance float64) float64 {
	return 1 / (1 + distance/100)
}

// SourceName strips the storage path and the upload id prefix.
func SourceName(path string) string {
	name := path
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	prefix, rest, ok := strings.Cut(name, "_")
	if ok && rest != "" {
		if _, err := uuid.Parse(prefix); err == nil {
			return rest
		}
	}

	return name
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n]) + "..."
}

// BuildContext tags every result with its 1-based rank so answers can cite
// them by number.
func BuildContext(results []vector.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("<document id='%d'>\n%s\n</document>", i+1, r.Content)
	}

	return strings.Join(parts, "\n\n")
}

func BuildPrompt(docs string, query string) string {
	return fmt.Sprintf(promptTemplate, docs, query)
}

func toSources(results []vector.Result) []Source {
	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{
			DocumentID: r.Metadata[MetadataDocumentID],
			ChunkID:    r.Metadata[MetadataChunkID],
			Source:     SourceName(r.Metadata[MetadataSource]),
			Page:       "unknown",
			Score:      Score(r.Distance),
			Preview:    truncate(r.Content, previewLength),
		}
	}

	return sources
}

func confidence(results []vector.Result) float64 {
	var best float64
	for _, r := range results {
		best = max(best, Score(r.Distance))
	}

	return best
}

func citations(header string, sources []Source, qualifier string, confidence float64) string {
	var b strings.Builder

	if header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}

	b.WriteString("Based on the retrieved documents:\n\n")

	for i, s := range sources {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, s.Preview)
	}

	fmt.Fprintf(&b, "\nThis information comes from %d %s document(s) with confidence score: %.2f",
		len(sources), qualifier, confidence)

	return b.String()
}

const lowConfidenceHeader = "No explicit answer was found in the documents. " +
	"Inference: the passages below are the closest matches, but their relevance is low and they may not answer the question."

func lowConfidenceAnswer(sources []Source, confidence float64) string {
	return citations(lowConfidenceHeader, sources, "low-confidence", confidence)
}

func errorFallbackAnswer(sources []Source, confidence float64) string {
	return citations("", sources, "relevant", confidence)
}

// Orchestrator answers a query from the vector index, choosing between a
// canned answer, a citation listing and a generated answer.
type Orchestrator struct {
	collection  vector.Collection
	generator   llm.Generator
	topK        int
	minScore    float64
	streamDelay time.Duration
	log         *zap.Logger
}

func NewOrchestrator(collection vector.Collection, generator llm.Generator, cfg RetrievalConfig) *Orchestrator {
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	minScore := cfg.MinScore
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	return &Orchestrator{
		collection:  collection,
		generator:   generator,
		topK:        topK,
		minScore:    minScore,
		streamDelay: cfg.StreamDelay.Duration(),
		log: zap.L().With(
			zap.String("component", "orchestrator"),
		),
	}
}

func (o *Orchestrator) Search(ctx context.Context, query string, topK int, documentID string) ([]vector.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	if topK <= 0 {
		topK = o.topK
	}

	var filter map[string]string
	if documentID != "" {
		filter = map[string]string{
			MetadataDocumentID: documentID,
		}
	}

	return o.collection.Search(ctx, query, topK, filter)
}

// Answer runs the buffered flow. A nil generator selects the default one.
// Generation failures degrade to a citation listing and are never returned.
func (o *Orchestrator) Answer(ctx context.Context, req AnswerRequest, generator llm.Generator) (*Answer, error) {
	if generator == nil {
		generator = o.generator
	}

	log := o.log.With(
		zap.String("action", "answer"),
	)

	results, err := o.Search(ctx, req.Query, req.TopK, req.DocumentID)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		log.Warn("no relevant context found")

		return &Answer{
			Answer:     NoResultsAnswer,
			Sources:    []Source{},
			Confidence: 0,
			Strategy:   StrategyNoResults,
		}, nil
	}

	minScore := req.MinScore
	if minScore <= 0 {
		minScore = o.minScore
	}

	docs := BuildContext(results)
	sources := toSources(results)
	best := confidence(results)

	answer := &Answer{
		Sources:    sources,
		Confidence: best,
	}

	if req.ReturnContext {
		answer.Context = docs
	}

	if best < minScore {
		log.Warn("low confidence", zap.Float64("confidence", best))

		answer.Answer = lowConfidenceAnswer(sources, best)
		answer.Strategy = StrategyLowConfidence
		return answer, nil
	}

	text, err := generator.Generate(ctx, BuildPrompt(docs, req.Query))
	if err != nil {
		log.Error("generation failed, answering with citations", zap.Error(err))

		answer.Answer = errorFallbackAnswer(sources, best)
		answer.Strategy = StrategyErrorFallback
		return answer, nil
	}

	answer.Answer = text
	answer.Strategy = StrategyGenerated
	answer.Model = generator.Name()
	return answer, nil
}

// Stream runs the streaming flow. Every sequence ends with a done event.
// Search failures are reported as an error event.
func (o *Orchestrator) Stream(ctx context.Context, req AnswerRequest, generator llm.Generator) iter.Seq[StreamEvent] {
	if generator == nil {
		generator = o.generator
	}

	log := o.log.With(
		zap.String("action", "stream"),
	)

	return func(yield func(StreamEvent) bool) {
		results, err := o.Search(ctx, req.Query, req.TopK, req.DocumentID)
		if err != nil {
			log.Error(err.Error())

			if yield(StreamEvent{Type: EventError, Error: err.Error()}) {
				yield(StreamEvent{Type: EventDone})
			}
			return
		}

		found := len(results)
		if !yield(StreamEvent{Type: EventSearchComplete, ResultsFound: &found}) {
			return
		}

		if found == 0 {
			if yield(StreamEvent{Type: EventContent, Content: NoResultsAnswer}) {
				yield(StreamEvent{Type: EventDone})
			}
			return
		}

		sources := toSources(results)
		if !yield(StreamEvent{Type: EventSources, Sources: sources}) {
			return
		}

		prompt := BuildPrompt(BuildContext(results), req.Query)

		for part, err := range generator.Stream(ctx, prompt) {
			if err != nil {
				log.Error("streaming failed, answering with citations", zap.Error(err))

				fallback := errorFallbackAnswer(sources, confidence(results))
				if !o.streamWords(ctx, fallback, yield) {
					return
				}
				break
			}

			if !yield(StreamEvent{Type: EventContent, Content: part}) {
				return
			}
		}

		yield(StreamEvent{Type: EventDone})
	}
}

// streamWords emits text word by word with a small delay to emulate
// progressive rendering.
func (o *Orchestrator) streamWords(ctx context.Context, text string, yield func(StreamEvent) bool) bool {
	for _, word := range strings.Fields(text) {
		if !yield(StreamEvent{Type: EventContent, Content: word + " "}) {
			return false
		}

		if o.streamDelay <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(o.streamDelay):
		}
	}

	return true
}
