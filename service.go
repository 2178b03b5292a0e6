package docrag

import (
	"context"
	"errors"
	"iter"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flarexio/docrag/blob"
	"github.com/flarexio/docrag/embedding"
	"github.com/flarexio/docrag/extract"
	"github.com/flarexio/docrag/llm"
	"github.com/flarexio/docrag/vector"
)

// Service defines the core logic of DocRAG.
type Service interface {

	// Close waits for queued ingestion jobs and releases the vector index.
	Close() error

	// UploadDocument stores the file, records the document and queues its
	// ingestion. The returned document is in the uploading status.
	UploadDocument(ctx context.Context, req UploadRequest) (*Document, error)

	// ListDocuments returns documents newest first.
	ListDocuments(ctx context.Context, skip int, limit int) ([]*Document, error)

	GetDocument(ctx context.Context, id string) (*Document, error)

	// DeleteDocument removes the document row, its blob and its vector records.
	DeleteDocument(ctx context.Context, id string) error

	// GetDocumentContent returns the extracted text of the stored file.
	GetDocumentContent(ctx context.Context, id string) (*DocumentContent, error)

	// GetDocumentStatus returns the last persisted processing status.
	GetDocumentStatus(ctx context.Context, id string) (*ProcessingStatus, error)

	// RetryDocument queues a failed document for ingestion again.
	RetryDocument(ctx context.Context, id string) (*Document, error)

	// CreateChatMessage answers the message and records the exchange.
	CreateChatMessage(ctx context.Context, req ChatRequest) (*ChatMessage, error)

	ListChatMessages(ctx context.Context, query ChatQuery) ([]*ChatMessage, error)

	// StreamChat answers the message as a sequence of events.
	StreamChat(ctx context.Context, req ChatRequest) (iter.Seq[StreamEvent], error)

	ListModels(ctx context.Context, activeOnly bool) ([]*LLMModel, error)
	CreateModel(ctx context.Context, req CreateModelRequest) (*LLMModel, error)
	UpdateModel(ctx context.Context, id string, update LLMModelUpdate) (*LLMModel, error)

	Stats(ctx context.Context) (*Stats, error)
	Search(ctx context.Context, req SearchRequest) ([]SearchResult, error)
	Generate(ctx context.Context, req AnswerRequest) (*Answer, error)
}

type ServiceMiddleware func(Service) Service

// Components are the collaborators owned by the composition root.
type Components struct {
	Documents DocumentRepository
	Chats     ChatRepository
	Models    ModelRepository
	Blobs     blob.Store
	Vectors   vector.VectorDB
	Embedder  embedding.Embedder
	Generator llm.Generator
}

func NewService(ctx context.Context, cfg Config, c Components) (Service, error) {
	cfg.ApplyDefaults()

	log := zap.L().With(
		zap.String("service", "docrag"),
	)

	if c.Generator == nil {
		g, err := llm.New(cfg.LLM)
		if err != nil {
			return nil, err
		}

		c.Generator = g
	}

	collection, err := c.Vectors.Collection(ctx, cfg.Vector.Collection)
	if err != nil {
		return nil, err
	}

	svc := &service{
		documents:  c.Documents,
		chats:      c.Chats,
		models:     c.Models,
		blobs:      c.Blobs,
		vectors:    c.Vectors,
		embedder:   c.Embedder,
		collection: collection,

		pipeline:     NewPipeline(c.Documents, c.Blobs, c.Embedder, collection, cfg),
		orchestrator: NewOrchestrator(collection, c.Generator, cfg.Retrieval),
		workers:      NewWorkerPool(ctx, cfg.Ingestion.Workers, cfg.Ingestion.QueueSize),
		generator:    c.Generator,

		cfg: cfg,
		log: log,
	}

	return svc, nil
}

type service struct {
	documents DocumentRepository
	chats     ChatRepository
	models    ModelRepository
	blobs     blob.Store
	vectors   vector.VectorDB
	embedder  embedding.Embedder

	// Vector collection (thread-safe by itself)
	collection vector.Collection

	pipeline     *Pipeline
	orchestrator *Orchestrator
	workers      *WorkerPool
	generator    llm.Generator

	cfg Config
	log *zap.Logger
}

func (svc *service) Close() error {
	svc.workers.Close()
	return svc.vectors.Close()
}

func (svc *service) UploadDocument(ctx context.Context, req UploadRequest) (*Document, error) {
	// Base turns an empty name into "."
	if name := strings.TrimSpace(req.Filename); name != "" {
		req.Filename = filepath.Base(name)
	} else {
		req.Filename = ""
	}

	if err := req.Validate(svc.cfg.Upload); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	path := id + "_" + req.Filename

	if err := svc.blobs.Put(ctx, path, req.Data); err != nil {
		return nil, err
	}

	now := time.Now()
	doc := &Document{
		ID:          id,
		Filename:    req.Filename,
		FilePath:    path,
		FileSize:    int64(len(req.Data)),
		UploaderID:  req.UploaderID,
		UploadedAt:  now,
		StorageType: svc.blobs.Type(),
		Status:      StatusUploading,
		Progress:    StatusUploading.Progress(),
		Message:     messageUploading,
		UpdatedAt:   now,
	}

	if err := svc.documents.Store(ctx, doc); err != nil {
		return nil, err
	}

	if err := svc.enqueue(ctx, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// enqueue hands a copy of the document to the worker pool. A rejected job
// marks the document as failed so it can be retried later.
func (svc *service) enqueue(ctx context.Context, doc *Document) error {
	job := *doc

	err := svc.workers.Submit(func(ctx context.Context) error {
		return svc.pipeline.Process(ctx, &job)
	})

	if err != nil {
		svc.pipeline.fail(ctx, doc, err)
		return err
	}

	return nil
}

func (svc *service) ListDocuments(ctx context.Context, skip int, limit int) ([]*Document, error) {
	if skip < 0 {
		skip = 0
	}

	if limit <= 0 {
		limit = 100
	}

	return svc.documents.List(ctx, skip, limit)
}

func (svc *service) GetDocument(ctx context.Context, id string) (*Document, error) {
	return svc.documents.Find(ctx, id)
}

func (svc *service) DeleteDocument(ctx context.Context, id string) error {
	log := svc.log.With(
		zap.String("action", "delete_document"),
		zap.String("document_id", id),
	)

	doc, err := svc.documents.Find(ctx, id)
	if err != nil {
		return err
	}

	if _, err := svc.blobs.Delete(ctx, doc.FilePath); err != nil {
		log.Warn("failed to delete blob", zap.Error(err))
	}

	filter := map[string]string{
		MetadataDocumentID: doc.ID,
	}

	if err := svc.collection.DeleteBy(ctx, filter); err != nil {
		log.Error("failed to delete vectors", zap.Error(err))
	}

	return svc.documents.Delete(ctx, id)
}

func (svc *service) GetDocumentContent(ctx context.Context, id string) (*DocumentContent, error) {
	doc, err := svc.documents.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := svc.blobs.Get(ctx, doc.FilePath)
	if err != nil {
		return nil, err
	}

	return &DocumentContent{
		Content: extract.View(data, doc.Filename),
		Metadata: map[string]any{
			"filename":     doc.Filename,
			"file_size":    doc.FileSize,
			"file_type":    doc.FileType(),
			"storage_type": doc.StorageType,
			"uploaded_at":  doc.UploadedAt.Format(time.RFC3339),
		},
	}, nil
}

func (svc *service) GetDocumentStatus(ctx context.Context, id string) (*ProcessingStatus, error) {
	doc, err := svc.documents.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	return doc.ProcessingStatus(), nil
}

func (svc *service) RetryDocument(ctx context.Context, id string) (*Document, error) {
	doc, err := svc.documents.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !doc.Status.CanTransitionTo(StatusUploading) {
		return nil, ErrNotRetryable
	}

	// drop whatever a partial run left in the index
	filter := map[string]string{
		MetadataDocumentID: doc.ID,
	}

	if err := svc.collection.DeleteBy(ctx, filter); err != nil {
		return nil, err
	}

	doc.Status = StatusUploading
	doc.Progress = StatusUploading.Progress()
	doc.ChunkCount = 0
	doc.Message = messageUploading
	doc.Error = ""
	doc.UpdatedAt = time.Now()

	if err := svc.documents.Update(ctx, doc); err != nil {
		return nil, err
	}

	if err := svc.enqueue(ctx, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// generatorFor resolves the generator of a chat request. An empty id
// selects the configured default.
func (svc *service) generatorFor(ctx context.Context, modelID string) (llm.Generator, string, error) {
	if modelID == "" {
		return svc.generator, svc.generator.Name(), nil
	}

	model, err := svc.models.Find(ctx, modelID)
	if err != nil {
		return nil, "", err
	}

	if !model.IsActive {
		return nil, "", ErrModelInactive
	}

	cfg, err := model.GeneratorConfig()
	if err != nil {
		return nil, "", err
	}

	g, err := llm.New(cfg)
	if err != nil {
		return nil, "", err
	}

	return g, model.Used(), nil
}

func (svc *service) CreateChatMessage(ctx context.Context, req ChatRequest) (*ChatMessage, error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return nil, ErrEmptyQuery
	}

	generator, used, err := svc.generatorFor(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}

	answer, err := svc.orchestrator.Answer(ctx, AnswerRequest{
		Query:      req.UserMessage,
		TopK:       req.TopK,
		DocumentID: req.DocumentID,
	}, generator)
	if err != nil {
		return nil, err
	}

	msg := &ChatMessage{
		ID:          uuid.NewString(),
		SessionID:   req.SessionID,
		UserMessage: req.UserMessage,
		AIResponse:  answer.Answer,
		Timestamp:   time.Now(),
		ModelUsed:   used,
	}

	if err := svc.chats.Store(ctx, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

func (svc *service) ListChatMessages(ctx context.Context, query ChatQuery) ([]*ChatMessage, error) {
	if query.Skip < 0 {
		query.Skip = 0
	}

	if query.Limit <= 0 {
		query.Limit = 50
	}

	return svc.chats.List(ctx, query)
}

func (svc *service) StreamChat(ctx context.Context, req ChatRequest) (iter.Seq[StreamEvent], error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return nil, ErrEmptyQuery
	}

	generator, used, err := svc.generatorFor(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}

	log := svc.log.With(
		zap.String("action", "stream_chat"),
	)

	events := svc.orchestrator.Stream(ctx, AnswerRequest{
		Query:      req.UserMessage,
		TopK:       req.TopK,
		DocumentID: req.DocumentID,
	}, generator)

	// record the exchange once the stream has been consumed to the end
	return func(yield func(StreamEvent) bool) {
		var answer strings.Builder

		for event := range events {
			if event.Type == EventContent {
				answer.WriteString(event.Content)
			}

			if !yield(event) {
				return
			}

			if event.Type != EventDone {
				continue
			}

			msg := &ChatMessage{
				ID:          uuid.NewString(),
				SessionID:   req.SessionID,
				UserMessage: req.UserMessage,
				AIResponse:  strings.TrimSpace(answer.String()),
				Timestamp:   time.Now(),
				ModelUsed:   used,
			}

			if err := svc.chats.Store(context.WithoutCancel(ctx), msg); err != nil {
				log.Error("failed to store chat message", zap.Error(err))
			}
		}
	}, nil
}

func (svc *service) ListModels(ctx context.Context, activeOnly bool) ([]*LLMModel, error) {
	return svc.models.List(ctx, activeOnly)
}

func (svc *service) CreateModel(ctx context.Context, req CreateModelRequest) (*LLMModel, error) {
	if req.Name == "" || req.Provider == "" || req.ModelName == "" {
		return nil, ErrInvalidModel
	}

	if _, err := llm.ParseProvider(req.Provider); err != nil {
		return nil, errors.Join(ErrUnsupportedProvider, err)
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	params := req.Parameters
	if params == nil {
		params = make(map[string]any)
	}

	model := &LLMModel{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Provider:   strings.ToLower(req.Provider),
		ModelName:  req.ModelName,
		APIKey:     req.APIKey,
		BaseURL:    req.BaseURL,
		IsActive:   active,
		Parameters: params,
		CreatedBy:  req.CreatedBy,
		CreatedAt:  time.Now(),
	}

	if err := svc.models.Store(ctx, model); err != nil {
		return nil, err
	}

	return model, nil
}

func (svc *service) UpdateModel(ctx context.Context, id string, update LLMModelUpdate) (*LLMModel, error) {
	model, err := svc.models.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	update.Apply(model)

	if model.Name == "" || model.Provider == "" || model.ModelName == "" {
		return nil, ErrInvalidModel
	}

	if _, err := llm.ParseProvider(model.Provider); err != nil {
		return nil, errors.Join(ErrUnsupportedProvider, err)
	}

	if err := svc.models.Update(ctx, model); err != nil {
		return nil, err
	}

	return model, nil
}

func (svc *service) Stats(ctx context.Context) (*Stats, error) {
	vectors, err := svc.collection.Count(ctx)
	if err != nil {
		return nil, err
	}

	documents, err := svc.documents.CountIndexed(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		TotalVectors:   vectors,
		TotalDocuments: documents,
		EmbeddingModel: svc.embedder.Name(),
	}, nil
}

func (svc *service) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	results, err := svc.orchestrator.Search(ctx, req.Query, req.TopK, req.DocumentID)
	if err != nil {
		return nil, err
	}

	items := make([]SearchResult, len(results))
	for i, r := range results {
		items[i] = SearchResult{
			ID:         r.ID,
			DocumentID: r.Metadata[MetadataDocumentID],
			ChunkID:    r.Metadata[MetadataChunkID],
			Source:     r.Metadata[MetadataSource],
			Text:       r.Content,
			Distance:   r.Distance,
			Score:      Score(r.Distance),
			Rank:       r.Rank,
		}
	}

	return items, nil
}

func (svc *service) Generate(ctx context.Context, req AnswerRequest) (*Answer, error) {
	generator, _, err := svc.generatorFor(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}

	return svc.orchestrator.Answer(ctx, req, generator)
}
