package docrag

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/flarexio/docrag/blob"
	"github.com/flarexio/docrag/embedding"
	"github.com/flarexio/docrag/llm"
	"github.com/flarexio/docrag/persistence/chromem"
	"github.com/flarexio/docrag/persistence/filesystem"
	"github.com/flarexio/docrag/vector"
)

// switchEmbedder fails or crashes on demand and otherwise delegates.
type switchEmbedder struct {
	embedding.Embedder
	fail  atomic.Bool
	crash atomic.Bool
}

func (e *switchEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.crash.Load() {
		var cache map[string][]float32
		cache[texts[0]] = nil
	}

	if e.fail.Load() {
		return nil, errors.New("embedding backend unavailable")
	}

	return e.Embedder.Embed(ctx, texts)
}

// faults switches deletion failures on for the wrapped storages.
type faults struct {
	blobDelete  atomic.Bool
	indexDelete atomic.Bool
}

type faultyBlobs struct {
	blob.Store
	faults *faults
}

func (s *faultyBlobs) Delete(ctx context.Context, path string) (bool, error) {
	if s.faults.blobDelete.Load() {
		return false, errors.New("storage offline")
	}

	return s.Store.Delete(ctx, path)
}

type faultyVectorDB struct {
	vector.VectorDB
	faults *faults
}

func (db *faultyVectorDB) Collection(ctx context.Context, name string) (vector.Collection, error) {
	c, err := db.VectorDB.Collection(ctx, name)
	if err != nil {
		return nil, err
	}

	return &faultyCollection{c, db.faults}, nil
}

type faultyCollection struct {
	vector.Collection
	faults *faults
}

func (c *faultyCollection) DeleteBy(ctx context.Context, filter map[string]string) error {
	if c.faults.indexDelete.Load() {
		return errors.New("index offline")
	}

	return c.Collection.DeleteBy(ctx, filter)
}

type stubGenerator struct {
	text  string
	parts []string
	err   error
	calls atomic.Int32
}

func (g *stubGenerator) Name() string {
	return "stub/test"
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls.Add(1)

	if g.err != nil {
		return "", g.err
	}

	return g.text, nil
}

func (g *stubGenerator) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	g.calls.Add(1)

	return func(yield func(string, error) bool) {
		for _, part := range g.parts {
			if !yield(part, nil) {
				return
			}
		}

		if g.err != nil {
			yield("", g.err)
		}
	}
}

type serviceTestSuite struct {
	suite.Suite
	ctx       context.Context
	svc       Service
	documents *documentStore
	blobs     blob.Store
	faults    *faults
	embedder  *switchEmbedder
	generator *stubGenerator
}

func (suite *serviceTestSuite) SetupTest() {
	ctx := context.Background()

	cfg := Config{
		Vector: vector.Config{
			Collection: "documents",
		},
		Retrieval: RetrievalConfig{
			StreamDelay: Duration(time.Millisecond),
		},
		Ingestion: IngestionConfig{
			WorkDir: suite.T().TempDir(),
		},
	}

	hash := embedding.NewHashEmbedder(512)

	vectors, err := chromem.NewChromemVectorDB(cfg.Vector, hash)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	blobs, err := filesystem.NewBlobStore(suite.T().TempDir())
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.faults = new(faults)
	suite.blobs = &faultyBlobs{blobs, suite.faults}
	suite.documents = newDocumentStore()
	suite.embedder = &switchEmbedder{Embedder: hash}
	suite.generator = &stubGenerator{
		text:  "Paris is the capital of France [1].",
		parts: []string{"Paris ", "is the capital."},
	}

	svc, err := NewService(ctx, cfg, Components{
		Documents: suite.documents,
		Chats:     &chatStore{},
		Models:    newModelStore(),
		Blobs:     suite.blobs,
		Vectors:   &faultyVectorDB{vectors, suite.faults},
		Embedder:  suite.embedder,
		Generator: suite.generator,
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.ctx = ctx
	suite.svc = svc
}

func (suite *serviceTestSuite) TearDownTest() {
	if suite.svc != nil {
		suite.svc.Close()
	}
}

func (suite *serviceTestSuite) upload(filename string, content string) *Document {
	doc, err := suite.svc.UploadDocument(suite.ctx, UploadRequest{
		Filename: filename,
		Data:     []byte(content),
	})
	if err != nil {
		suite.FailNow(err.Error())
	}

	return doc
}

func (suite *serviceTestSuite) waitFor(id string, status DocumentStatus) {
	suite.Eventually(func() bool {
		s, err := suite.svc.GetDocumentStatus(suite.ctx, id)
		return err == nil && s.Status == status
	}, 5*time.Second, 10*time.Millisecond)
}

func (suite *serviceTestSuite) TestIngestion() {
	doc := suite.upload("paris.txt", "Paris is the capital of France.")

	suite.Equal(StatusUploading, doc.Status)
	suite.Equal(0, doc.Progress)
	suite.Equal("local", doc.StorageType)
	suite.True(strings.HasSuffix(doc.FilePath, "_paris.txt"))

	suite.waitFor(doc.ID, StatusCompleted)

	suite.Equal([]DocumentStatus{
		StatusUploading,
		StatusProcessing,
		StatusEmbedding,
		StatusCompleted,
	}, suite.documents.History(doc.ID))

	stored, err := suite.svc.GetDocument(suite.ctx, doc.ID)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(100, stored.Progress)
	suite.Equal("documents", stored.VectorCollectionID)

	results, err := suite.svc.Search(suite.ctx, SearchRequest{
		Query: "What is the capital of France?",
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	if suite.Len(results, 1) {
		r := results[0]
		suite.Equal(doc.ID+"_0", r.ID)
		suite.Equal(doc.ID, r.DocumentID)
		suite.Equal("0", r.ChunkID)
		suite.Equal(1, r.Rank)
		suite.Equal("Paris is the capital of France.", r.Text)
		suite.InDelta(Score(r.Distance), r.Score, 1e-9)
	}

	stats, err := suite.svc.Stats(suite.ctx)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(1, stats.TotalVectors)
	suite.Equal(1, stats.TotalDocuments)
	suite.Equal("hash", stats.EmbeddingModel)
}

func (suite *serviceTestSuite) TestIngestionFailure() {
	suite.embedder.fail.Store(true)

	doc := suite.upload("notes.md", "# Notes\n\nSome notes.")
	suite.waitFor(doc.ID, StatusError)

	suite.Equal([]DocumentStatus{
		StatusUploading,
		StatusProcessing,
		StatusEmbedding,
		StatusError,
	}, suite.documents.History(doc.ID))

	status, err := suite.svc.GetDocumentStatus(suite.ctx, doc.ID)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(float64(75), status.Progress)
	suite.Contains(status.Error, "embedding backend unavailable")

	// the row and the blob are kept for a retry
	_, err = suite.svc.GetDocumentContent(suite.ctx, doc.ID)
	suite.NoError(err)

	suite.embedder.fail.Store(false)

	retried, err := suite.svc.RetryDocument(suite.ctx, doc.ID)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(StatusUploading, retried.Status)
	suite.Empty(retried.Error)

	suite.waitFor(doc.ID, StatusCompleted)

	_, err = suite.svc.RetryDocument(suite.ctx, doc.ID)
	suite.ErrorIs(err, ErrNotRetryable)
}

func (suite *serviceTestSuite) TestIngestionPanic() {
	suite.embedder.crash.Store(true)

	doc := suite.upload("a.txt", "Some text that reaches the embedder.")
	suite.waitFor(doc.ID, StatusError)

	suite.Equal([]DocumentStatus{
		StatusUploading,
		StatusProcessing,
		StatusEmbedding,
		StatusError,
	}, suite.documents.History(doc.ID))

	status, err := suite.svc.GetDocumentStatus(suite.ctx, doc.ID)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Contains(status.Error, "ingestion panic")

	suite.embedder.crash.Store(false)

	_, err = suite.svc.RetryDocument(suite.ctx, doc.ID)
	suite.NoError(err)

	suite.waitFor(doc.ID, StatusCompleted)
}

func (suite *serviceTestSuite) TestExtractionFailure() {
	doc := suite.upload("broken.docx", "this is not a zip archive")
	suite.waitFor(doc.ID, StatusError)

	suite.Equal([]DocumentStatus{
		StatusUploading,
		StatusProcessing,
		StatusError,
	}, suite.documents.History(doc.ID))

	status, err := suite.svc.GetDocumentStatus(suite.ctx, doc.ID)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(float64(25), status.Progress)
	suite.Contains(status.Error, "extract text")

	_, err = suite.svc.GetDocument(suite.ctx, doc.ID)
	suite.NoError(err)

	data, err := suite.blobs.Get(suite.ctx, doc.FilePath)
	suite.NoError(err)
	suite.Equal("this is not a zip archive", string(data))
}

func (suite *serviceTestSuite) TestBlankDocumentIsNotCounted() {
	doc := suite.upload("blank.txt", "  \n\t  \n")
	suite.waitFor(doc.ID, StatusCompleted)

	stored, err := suite.svc.GetDocument(suite.ctx, doc.ID)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Zero(stored.ChunkCount)

	stats, err := suite.svc.Stats(suite.ctx)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(0, stats.TotalVectors)
	suite.Equal(0, stats.TotalDocuments)
}

func (suite *serviceTestSuite) TestDeleteDocumentBestEffort() {
	doc := suite.upload("paris.txt", "Paris is the capital of France.")
	suite.waitFor(doc.ID, StatusCompleted)

	suite.faults.blobDelete.Store(true)
	suite.faults.indexDelete.Store(true)

	err := suite.svc.DeleteDocument(suite.ctx, doc.ID)
	suite.NoError(err)

	_, err = suite.svc.GetDocument(suite.ctx, doc.ID)
	suite.ErrorIs(err, ErrDocumentNotFound)

	// the leftovers stay behind
	_, err = suite.blobs.Get(suite.ctx, doc.FilePath)
	suite.NoError(err)
}

func (suite *serviceTestSuite) TestUploadValidation() {
	_, err := suite.svc.UploadDocument(suite.ctx, UploadRequest{
		Filename: "tool.exe",
		Data:     []byte("MZ"),
	})
	suite.ErrorIs(err, ErrUnsupportedFileType)

	_, err = suite.svc.UploadDocument(suite.ctx, UploadRequest{
		Filename: "empty.txt",
	})
	suite.ErrorIs(err, ErrEmptyFile)

	for _, name := range []string{"", "   "} {
		_, err = suite.svc.UploadDocument(suite.ctx, UploadRequest{
			Filename: name,
			Data:     []byte("content"),
		})
		suite.ErrorIs(err, ErrMissingFilename)
	}

	docs, err := suite.svc.ListDocuments(suite.ctx, 0, 0)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Empty(docs)
}

func (suite *serviceTestSuite) TestDeleteDocument() {
	doc := suite.upload("paris.txt", "Paris is the capital of France.")
	suite.waitFor(doc.ID, StatusCompleted)

	err := suite.svc.DeleteDocument(suite.ctx, doc.ID)
	suite.NoError(err)

	_, err = suite.svc.GetDocument(suite.ctx, doc.ID)
	suite.ErrorIs(err, ErrDocumentNotFound)

	_, err = suite.blobs.Get(suite.ctx, doc.FilePath)
	suite.ErrorIs(err, blob.ErrNotFound)

	err = suite.svc.DeleteDocument(suite.ctx, doc.ID)
	suite.ErrorIs(err, ErrDocumentNotFound)

	stats, err := suite.svc.Stats(suite.ctx)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(0, stats.TotalVectors)
	suite.Equal(0, stats.TotalDocuments)
}

func (suite *serviceTestSuite) TestGenerate() {
	doc := suite.upload("paris.txt", "Paris is the capital of France.")
	suite.waitFor(doc.ID, StatusCompleted)

	answer, err := suite.svc.Generate(suite.ctx, AnswerRequest{
		Query:         "What is the capital of France?",
		ReturnContext: true,
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(StrategyGenerated, answer.Strategy)
	suite.Equal("Paris is the capital of France [1].", answer.Answer)
	suite.Equal("stub/test", answer.Model)
	suite.Contains(answer.Context, "<document id='1'>")

	if suite.Len(answer.Sources, 1) {
		suite.Equal("paris.txt", answer.Sources[0].Source)
		suite.Equal(doc.ID, answer.Sources[0].DocumentID)
	}
}

func (suite *serviceTestSuite) TestGenerateNoResults() {
	doc := suite.upload("paris.txt", "Paris is the capital of France.")
	suite.waitFor(doc.ID, StatusCompleted)

	answer, err := suite.svc.Generate(suite.ctx, AnswerRequest{
		Query:      "What is the capital of France?",
		DocumentID: "missing",
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(StrategyNoResults, answer.Strategy)
	suite.Equal(NoResultsAnswer, answer.Answer)
	suite.Empty(answer.Sources)
	suite.Zero(answer.Confidence)
	suite.Zero(suite.generator.calls.Load())
}

func (suite *serviceTestSuite) TestGenerateLowConfidence() {
	doc := suite.upload("bananas.txt", "Bananas grow in warm tropical climates.")
	suite.waitFor(doc.ID, StatusCompleted)

	answer, err := suite.svc.Generate(suite.ctx, AnswerRequest{
		Query:    "quantum entanglement",
		MinScore: 0.5,
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(StrategyLowConfidence, answer.Strategy)
	suite.Contains(answer.Answer, "Inference")
	suite.Contains(answer.Answer, "[1] Bananas grow in warm tropical climates.")
	suite.Less(answer.Confidence, 0.5)
	suite.Zero(suite.generator.calls.Load())
}

func (suite *serviceTestSuite) TestGenerateFallback() {
	suite.generator.err = llm.ErrGeneration

	doc := suite.upload("paris.txt", "Paris is the capital of France.")
	suite.waitFor(doc.ID, StatusCompleted)

	answer, err := suite.svc.Generate(suite.ctx, AnswerRequest{
		Query: "What is the capital of France?",
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(StrategyErrorFallback, answer.Strategy)
	suite.True(strings.HasPrefix(answer.Answer, "Based on the retrieved documents:"))
	suite.Contains(answer.Answer, "[1] Paris is the capital of France.")
	suite.Contains(answer.Answer, "This information comes from 1 relevant document(s)")
}

func (suite *serviceTestSuite) TestEmptyQuery() {
	_, err := suite.svc.Search(suite.ctx, SearchRequest{Query: "  "})
	suite.ErrorIs(err, ErrEmptyQuery)

	_, err = suite.svc.CreateChatMessage(suite.ctx, ChatRequest{})
	suite.ErrorIs(err, ErrEmptyQuery)

	_, err = suite.svc.StreamChat(suite.ctx, ChatRequest{})
	suite.ErrorIs(err, ErrEmptyQuery)
}

func (suite *serviceTestSuite) TestChat() {
	doc := suite.upload("paris.txt", "Paris is the capital of France.")
	suite.waitFor(doc.ID, StatusCompleted)

	for _, q := range []string{"What is the capital of France?", "Where is Paris?"} {
		_, err := suite.svc.CreateChatMessage(suite.ctx, ChatRequest{
			UserMessage: q,
			SessionID:   "s1",
		})
		if err != nil {
			suite.Fail(err.Error())
			return
		}
	}

	msgs, err := suite.svc.ListChatMessages(suite.ctx, ChatQuery{SessionID: "s1"})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	if suite.Len(msgs, 2) {
		suite.Equal("Where is Paris?", msgs[0].UserMessage)
		suite.Equal("stub/test", msgs[0].ModelUsed)
		suite.Equal("Paris is the capital of France [1].", msgs[0].AIResponse)
	}

	msgs, err = suite.svc.ListChatMessages(suite.ctx, ChatQuery{SessionID: "s2"})
	suite.NoError(err)
	suite.Empty(msgs)
}

func (suite *serviceTestSuite) collect(events iter.Seq[StreamEvent]) []StreamEvent {
	var collected []StreamEvent
	for event := range events {
		collected = append(collected, event)
	}

	return collected
}

func types(events []StreamEvent) []StreamEventType {
	ts := make([]StreamEventType, len(events))
	for i, e := range events {
		ts[i] = e.Type
	}

	return ts
}

func (suite *serviceTestSuite) TestStreamChat() {
	doc := suite.upload("paris.txt", "Paris is the capital of France.")
	suite.waitFor(doc.ID, StatusCompleted)

	events, err := suite.svc.StreamChat(suite.ctx, ChatRequest{
		UserMessage: "What is the capital of France?",
		SessionID:   "s1",
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	collected := suite.collect(events)

	suite.Equal([]StreamEventType{
		EventSearchComplete,
		EventSources,
		EventContent,
		EventContent,
		EventDone,
	}, types(collected))

	if suite.NotNil(collected[0].ResultsFound) {
		suite.Equal(1, *collected[0].ResultsFound)
	}

	suite.Len(collected[1].Sources, 1)

	msgs, err := suite.svc.ListChatMessages(suite.ctx, ChatQuery{SessionID: "s1"})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	if suite.Len(msgs, 1) {
		suite.Equal("Paris is the capital.", msgs[0].AIResponse)
	}
}

func (suite *serviceTestSuite) TestStreamChatNoResults() {
	events, err := suite.svc.StreamChat(suite.ctx, ChatRequest{
		UserMessage: "What is the capital of France?",
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	collected := suite.collect(events)

	suite.Equal([]StreamEventType{
		EventSearchComplete,
		EventContent,
		EventDone,
	}, types(collected))

	suite.Equal(0, *collected[0].ResultsFound)
	suite.Equal(NoResultsAnswer, collected[1].Content)
	suite.Zero(suite.generator.calls.Load())
}

func (suite *serviceTestSuite) TestStreamChatFallback() {
	suite.generator.parts = nil
	suite.generator.err = llm.ErrGeneration

	doc := suite.upload("paris.txt", "Paris is the capital of France.")
	suite.waitFor(doc.ID, StatusCompleted)

	events, err := suite.svc.StreamChat(suite.ctx, ChatRequest{
		UserMessage: "What is the capital of France?",
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	collected := suite.collect(events)

	suite.Equal(EventSearchComplete, collected[0].Type)
	suite.Equal(EventSources, collected[1].Type)
	suite.Equal(EventDone, collected[len(collected)-1].Type)

	var b strings.Builder
	for _, e := range collected[2 : len(collected)-1] {
		suite.Equal(EventContent, e.Type)
		b.WriteString(e.Content)
	}

	suite.True(strings.HasPrefix(b.String(), "Based on the retrieved documents: [1] Paris"))
	suite.Contains(b.String(), "confidence score:")
}

func (suite *serviceTestSuite) TestModels() {
	_, err := suite.svc.CreateModel(suite.ctx, CreateModelRequest{
		Provider:  "ollama",
		ModelName: "llama3.2",
	})
	suite.ErrorIs(err, ErrInvalidModel)

	_, err = suite.svc.CreateModel(suite.ctx, CreateModelRequest{
		Name:      "claude",
		Provider:  "anthropic",
		ModelName: "any",
	})
	suite.ErrorIs(err, ErrUnsupportedProvider)

	model, err := suite.svc.CreateModel(suite.ctx, CreateModelRequest{
		Name:      "local",
		Provider:  "Ollama",
		ModelName: "llama3.2",
		Parameters: map[string]any{
			"temperature": 0.2,
		},
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.True(model.IsActive)
	suite.Equal("ollama", model.Provider)

	inactive := false
	updated, err := suite.svc.UpdateModel(suite.ctx, model.ID, LLMModelUpdate{
		IsActive: &inactive,
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.False(updated.IsActive)
	suite.Equal("local", updated.Name)

	active, err := suite.svc.ListModels(suite.ctx, true)
	suite.NoError(err)
	suite.Empty(active)

	all, err := suite.svc.ListModels(suite.ctx, false)
	suite.NoError(err)
	suite.Len(all, 1)

	_, err = suite.svc.CreateChatMessage(suite.ctx, ChatRequest{
		UserMessage: "hello",
		ModelID:     model.ID,
	})
	suite.ErrorIs(err, ErrModelInactive)

	_, err = suite.svc.Generate(suite.ctx, AnswerRequest{
		Query:   "hello",
		ModelID: "missing",
	})
	suite.ErrorIs(err, ErrModelNotFound)

	_, err = suite.svc.UpdateModel(suite.ctx, "missing", LLMModelUpdate{})
	suite.ErrorIs(err, ErrModelNotFound)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(serviceTestSuite))
}
