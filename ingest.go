package docrag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/flarexio/docrag/blob"
	"github.com/flarexio/docrag/chunk"
	"github.com/flarexio/docrag/embedding"
	"github.com/flarexio/docrag/extract"
	"github.com/flarexio/docrag/vector"
)

const (
	MetadataDocumentID = "document_id"
	MetadataChunkID    = "chunk_id"
	MetadataSource     = "source"
	MetadataFilename   = "filename"
)

const (
	messageUploading  = "File uploaded, waiting for processing"
	messageProcessing = "Extracting text from document"
	messageEmbedding  = "Creating embeddings"
	messageCompleted  = "Document processed successfully"
	messageFailed     = "Document processing failed"
)

// RecordID identifies one chunk of one document in the vector index.
func RecordID(documentID string, chunkIndex int) string {
	return documentID + "_" + strconv.Itoa(chunkIndex)
}

// Pipeline moves a stored document through extraction, chunking, embedding
// and indexing, persisting its status at every stage boundary.
type Pipeline struct {
	documents  DocumentRepository
	blobs      blob.Store
	embedder   embedding.Embedder
	collection vector.Collection
	chunker    *chunk.Chunker

	collectionID string
	workDir      string
	log          *zap.Logger
}

func NewPipeline(
	documents DocumentRepository,
	blobs blob.Store,
	embedder embedding.Embedder,
	collection vector.Collection,
	cfg Config,
) *Pipeline {
	overlap := chunk.DefaultOverlap
	if cfg.Chunking.Overlap != nil {
		overlap = *cfg.Chunking.Overlap
	}

	return &Pipeline{
		documents:  documents,
		blobs:      blobs,
		embedder:   embedder,
		collection: collection,
		chunker: chunk.New(
			chunk.WithSize(cfg.Chunking.Size),
			chunk.WithOverlap(overlap),
		),
		collectionID: cfg.Vector.Collection,
		workDir:      cfg.Ingestion.WorkDir,
		log: zap.L().With(
			zap.String("component", "pipeline"),
		),
	}
}

func (p *Pipeline) transition(ctx context.Context, doc *Document, status DocumentStatus, message string) error {
	if !doc.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, doc.Status, status)
	}

	doc.Status = status
	doc.Progress = status.Progress()
	doc.Message = message
	doc.UpdatedAt = time.Now()

	if err := p.documents.Update(ctx, doc); err != nil {
		return err
	}

	p.log.Info("status changed",
		zap.String("document_id", doc.ID),
		zap.String("status", string(status)),
		zap.Int("progress", doc.Progress),
	)

	return nil
}

// fail freezes progress and records the cause. The document row and its
// blob are kept so the document can be retried.
func (p *Pipeline) fail(ctx context.Context, doc *Document, cause error) error {
	doc.Status = StatusError
	doc.Message = messageFailed
	doc.Error = cause.Error()
	doc.UpdatedAt = time.Now()

	log := p.log.With(
		zap.String("document_id", doc.ID),
		zap.String("status", string(StatusError)),
		zap.Int("progress", doc.Progress),
	)

	log.Error(cause.Error())

	if err := p.documents.Update(ctx, doc); err != nil {
		log.Error("failed to persist error status", zap.Error(err))
		return err
	}

	return cause
}

// Process runs every stage after the upload. Any failure, a panic
// included, moves the document to the error status.
func (p *Pipeline) Process(ctx context.Context, doc *Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = p.fail(ctx, doc, fmt.Errorf("ingestion panic: %v", r))
		}
	}()

	if err := p.transition(ctx, doc, StatusProcessing, messageProcessing); err != nil {
		return p.fail(ctx, doc, err)
	}

	chunks, err := p.index(ctx, doc)
	if err != nil {
		return p.fail(ctx, doc, err)
	}

	doc.VectorCollectionID = p.collectionID
	doc.ChunkCount = chunks
	if err := p.transition(ctx, doc, StatusCompleted, messageCompleted); err != nil {
		return p.fail(ctx, doc, err)
	}

	p.log.Info("document indexed",
		zap.String("document_id", doc.ID),
		zap.Int("chunks", chunks),
	)

	return nil
}

func (p *Pipeline) index(ctx context.Context, doc *Document) (int, error) {
	data, err := p.blobs.Get(ctx, doc.FilePath)
	if err != nil {
		return 0, fmt.Errorf("read blob: %w", err)
	}

	f, err := os.CreateTemp(p.workDir, "docrag-*"+filepath.Ext(doc.Filename))
	if err != nil {
		return 0, err
	}

	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return 0, err
	}

	if err := f.Close(); err != nil {
		return 0, err
	}

	raw, err := os.ReadFile(tmp)
	if err != nil {
		return 0, err
	}

	text, err := extract.Extract(raw, doc.Filename)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}

	var (
		texts    []string
		metadata []map[string]string
	)

	for _, c := range p.chunker.Split(text) {
		if c.Content == "" {
			continue
		}

		index := len(texts)
		texts = append(texts, c.Content)
		metadata = append(metadata, map[string]string{
			MetadataDocumentID: doc.ID,
			MetadataChunkID:    strconv.Itoa(index),
			MetadataSource:     doc.FilePath,
			MetadataFilename:   doc.Filename,
		})
	}

	if err := p.transition(ctx, doc, StatusEmbedding, messageEmbedding); err != nil {
		return 0, err
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	records := make([]vector.Record, len(texts))
	for i := range texts {
		records[i] = vector.Record{
			ID:        RecordID(doc.ID, i),
			Metadata:  metadata[i],
			Content:   texts[i],
			Embedding: vectors[i],
		}
	}

	if err := p.collection.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("index chunks: %w", err)
	}

	if err := os.Remove(tmp); err != nil {
		return 0, err
	}

	return len(records), nil
}
