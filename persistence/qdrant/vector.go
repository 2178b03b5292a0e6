package qdrant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/flarexio/docrag/embedding"
	"github.com/flarexio/docrag/vector"
)

const (
	payloadRecordID = "record_id"
	payloadContent  = "content"

	upsertBatchSize = 100
)

var ErrQdrantUnreachable = errors.New("qdrant is unreachable")

// pointNamespace maps arbitrary record ids onto the UUIDs qdrant requires.
var pointNamespace = uuid.MustParse("8c2f3f6e-61b4-4c37-9f0e-3b1c4a1d2e77")

func NewQdrantVectorDB(cfg vector.Config, embedder embedding.Embedder) (vector.VectorDB, error) {
	host := cfg.Qdrant.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Qdrant.Port
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	db := &qdrantVectorDB{
		client:      client,
		embedder:    embedder,
		collections: make(map[string]*collection),
	}

	if err := db.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return db, nil
}

type qdrantVectorDB struct {
	client   *qdrant.Client
	embedder embedding.Embedder

	collections map[string]*collection
	sync.Mutex
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

func (db *qdrantVectorDB) healthCheckWithRetry(ctx context.Context) error {
	operation := func() error {
		result, err := db.client.HealthCheck(ctx)
		if err != nil {
			return err
		}

		if result == nil || result.Title == "" {
			return errors.New("health check returned invalid response")
		}

		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx))
}

func (db *qdrantVectorDB) Collection(ctx context.Context, name string) (vector.Collection, error) {
	db.Lock()
	defer db.Unlock()

	if c, ok := db.collections[name]; ok {
		return c, nil
	}

	c := &collection{
		client:   db.client,
		embedder: db.embedder,
		name:     name,
	}

	db.collections[name] = c
	return c, nil
}

func (db *qdrantVectorDB) Close() error {
	if db.client != nil {
		return db.client.Close()
	}
	return nil
}

type collection struct {
	client   *qdrant.Client
	embedder embedding.Embedder
	name     string

	ready bool
	sync.Mutex
}

func (c *collection) exists(ctx context.Context) (bool, error) {
	c.Lock()
	defer c.Unlock()

	return c.lookup(ctx)
}

// lookup must be called with the lock held.
func (c *collection) lookup(ctx context.Context) (bool, error) {
	if c.ready {
		return true, nil
	}

	names, err := c.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range names {
		if name == c.name {
			c.ready = true
			return true, nil
		}
	}

	return false, nil
}

// ensure creates the collection on first write, sized to the first vector.
// The lookup and the creation share one lock hold, so concurrent first
// writes create the collection once.
func (c *collection) ensure(ctx context.Context, dimension int) error {
	c.Lock()
	defer c.Unlock()

	ok, err := c.lookup(ctx)
	if err != nil {
		return err
	}

	if ok {
		return nil
	}

	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})

	if err != nil {
		// another process got there first
		if IsAlreadyExists(err) {
			c.ready = true
			return nil
		}

		return fmt.Errorf("failed to create collection: %w", err)
	}

	for _, field := range []string{"document_id", "source"} {
		_, err := c.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: c.name,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	c.ready = true
	return nil
}

func IsAlreadyExists(err error) bool {
	if st, ok := status.FromError(err); ok && st.Code() == codes.AlreadyExists {
		return true
	}

	return err != nil && strings.Contains(err.Error(), "already exists")
}

func (c *collection) Upsert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

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

	embeddings := make([][]float32, len(records))
	for i, r := range records {
		embeddings[i] = r.Embedding
	}

	if len(pending) > 0 {
		vectors, err := c.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed records: %w", err)
		}

		for j, i := range pending {
			embeddings[i] = vectors[j]
		}
	}

	if err := c.ensure(ctx, len(embeddings[0])); err != nil {
		return err
	}

	for i := 0; i < len(records); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(records))

		points := make([]*qdrant.PointStruct, 0, end-i)
		for j := i; j < end; j++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(PointID(records[j].ID)),
				Vectors: qdrant.NewVectors(embeddings[j]...),
				Payload: qdrant.NewValueMap(Payload(records[j])),
			})
		}

		operation := func() error {
			_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: c.name,
				Wait:           qdrant.PtrOf(true),
				Points:         points,
			})
			return err
		}

		err := backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx))
		if err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

func (c *collection) Search(ctx context.Context, query string, k int, filter map[string]string) ([]vector.Result, error) {
	if k <= 0 {
		return []vector.Result{}, nil
	}

	ok, err := c.exists(ctx)
	if err != nil {
		return nil, err
	}

	if !ok {
		return []vector.Result{}, nil
	}

	vectors, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.name,
		Query:          qdrant.NewQuery(vectors[0]...),
		Filter:         Filter(filter),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	docs := make([]vector.Result, 0, len(results))
	for i, result := range results {
		r := FromPayload(result.Payload)
		docs = append(docs, vector.Result{
			ID:       r.ID,
			Metadata: r.Metadata,
			Content:  r.Content,
			Distance: vector.Distance(float64(result.Score)),
			Rank:     i + 1,
		})
	}

	return docs, nil
}

func (c *collection) DeleteBy(ctx context.Context, filter map[string]string) error {
	if len(filter) == 0 {
		return vector.ErrEmptyFilter
	}

	ok, err := c.exists(ctx)
	if err != nil {
		return err
	}

	if !ok {
		return nil
	}

	_, err = c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.name,
		Points:         qdrant.NewPointsSelectorFilter(Filter(filter)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}

	return nil
}

func (c *collection) Count(ctx context.Context) (int, error) {
	ok, err := c.exists(ctx)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, nil
	}

	count, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: c.name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}

	return int(count), nil
}

// PointID derives a stable point UUID from a record id.
func PointID(recordID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(recordID)).String()
}

func Payload(r vector.Record) map[string]any {
	payload := make(map[string]any, len(r.Metadata)+2)
	for k, v := range r.Metadata {
		payload[k] = v
	}

	payload[payloadRecordID] = r.ID
	payload[payloadContent] = r.Content
	return payload
}

func FromPayload(payload map[string]*qdrant.Value) vector.Record {
	r := vector.Record{
		Metadata: make(map[string]string),
	}

	for k, v := range payload {
		switch k {
		case payloadRecordID:
			r.ID = v.GetStringValue()
		case payloadContent:
			r.Content = v.GetStringValue()
		default:
			r.Metadata[k] = v.GetStringValue()
		}
	}

	return r
}

// Filter builds an exact-match conjunction; nil when there is nothing to match.
func Filter(filter map[string]string) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}

	must := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		must = append(must, qdrant.NewMatch(k, v))
	}

	return &qdrant.Filter{
		Must: must,
	}
}
