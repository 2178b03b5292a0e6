package chromem

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"

	"github.com/flarexio/docrag/embedding"
	"github.com/flarexio/docrag/vector"
)

func NewChromemVectorDB(cfg vector.Config, embedder embedding.Embedder) (vector.VectorDB, error) {
	var db *chromem.DB
	if !cfg.Persistent {
		db = chromem.NewDB()
	} else {
		d, err := chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, err
		}

		db = d
	}

	return &chromemVectorDB{db, embedder}, nil
}

type chromemVectorDB struct {
	db       *chromem.DB
	embedder embedding.Embedder
}

func (v *chromemVectorDB) Collection(ctx context.Context, name string) (vector.Collection, error) {
	c, err := v.db.GetOrCreateCollection(name, nil, embeddingFunc(v.embedder))
	if err != nil {
		return nil, err
	}

	return &collection{c, v.embedder}, nil
}

func (v *chromemVectorDB) Close() error {
	return nil
}

// embeddingFunc adapts a batch embedder to chromem's single-text function.
func embeddingFunc(e embedding.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}

		return vectors[0], nil
	}
}

type collection struct {
	collection *chromem.Collection
	embedder   embedding.Embedder
}

func (c *collection) Upsert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	// embed everything that lacks a vector in one batch
	var (
		pending []int
		texts   []string
	)

	for i, r := range records {
		if len(r.Embedding) == 0 {
			pending = append(pending, i)
			texts = append(texts, r.Content)
		}
	}

	var vectors [][]float32
	if len(pending) > 0 {
		vs, err := c.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed records: %w", err)
		}

		vectors = vs
	}

	documents := make([]chromem.Document, len(records))
	for i, r := range records {
		documents[i] = chromem.Document{
			ID:        r.ID,
			Metadata:  r.Metadata,
			Embedding: r.Embedding,
			Content:   r.Content,
		}
	}

	for j, i := range pending {
		documents[i].Embedding = vectors[j]
	}

	return c.collection.AddDocuments(ctx, documents, runtime.NumCPU())
}

func (c *collection) Search(ctx context.Context, query string, k int, filter map[string]string) ([]vector.Result, error) {
	count := c.collection.Count()
	if count == 0 || k <= 0 {
		return []vector.Result{}, nil
	}

	if k > count {
		k = count
	}

	if len(filter) == 0 {
		filter = nil
	}

	results, err := c.collection.Query(ctx, query, k, filter, nil)
	if err != nil {
		return nil, err
	}

	docs := make([]vector.Result, len(results))
	for i, result := range results {
		docs[i] = vector.Result{
			ID:       result.ID,
			Metadata: result.Metadata,
			Content:  result.Content,
			Distance: vector.Distance(float64(result.Similarity)),
			Rank:     i + 1,
		}
	}

	return docs, nil
}

func (c *collection) DeleteBy(ctx context.Context, filter map[string]string) error {
	if len(filter) == 0 {
		return vector.ErrEmptyFilter
	}

	return c.collection.Delete(ctx, filter, nil)
}

func (c *collection) Count(ctx context.Context) (int, error) {
	return c.collection.Count(), nil
}
