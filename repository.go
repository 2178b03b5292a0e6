package docrag

import "context"

// DocumentRepository persists documents and their processing status.
type DocumentRepository interface {
	Store(ctx context.Context, doc *Document) error
	Update(ctx context.Context, doc *Document) error

	// Find returns ErrDocumentNotFound when no document has the id.
	Find(ctx context.Context, id string) (*Document, error)

	// List returns documents newest first.
	List(ctx context.Context, skip int, limit int) ([]*Document, error)

	// Delete returns ErrDocumentNotFound when no document has the id.
	Delete(ctx context.Context, id string) error

	// CountIndexed counts completed documents that left at least one
	// chunk in the vector index.
	CountIndexed(ctx context.Context) (int, error)
}

type ChatRepository interface {
	Store(ctx context.Context, msg *ChatMessage) error

	// List returns messages newest first.
	List(ctx context.Context, query ChatQuery) ([]*ChatMessage, error)
}

type ModelRepository interface {
	Store(ctx context.Context, model *LLMModel) error
	Update(ctx context.Context, model *LLMModel) error

	// Find returns ErrModelNotFound when no model has the id.
	Find(ctx context.Context, id string) (*LLMModel, error)
	List(ctx context.Context, activeOnly bool) ([]*LLMModel, error)
}
