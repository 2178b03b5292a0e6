package docrag

import (
	"context"
	"slices"
	"sync"
)

// In-memory repositories backing the service tests.

type documentStore struct {
	mu      sync.Mutex
	docs    map[string]Document
	history map[string][]DocumentStatus
}

func newDocumentStore() *documentStore {
	return &documentStore{
		docs:    make(map[string]Document),
		history: make(map[string][]DocumentStatus),
	}
}

func (s *documentStore) Store(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[doc.ID] = *doc
	s.history[doc.ID] = append(s.history[doc.ID], doc.Status)
	return nil
}

func (s *documentStore) Update(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; !ok {
		return ErrDocumentNotFound
	}

	s.docs[doc.ID] = *doc
	s.history[doc.ID] = append(s.history[doc.ID], doc.Status)
	return nil
}

func (s *documentStore) Find(ctx context.Context, id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}

	return &doc, nil
}

func (s *documentStore) List(ctx context.Context, skip int, limit int) ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, &doc)
	}

	slices.SortFunc(docs, func(a, b *Document) int {
		return b.UploadedAt.Compare(a.UploadedAt)
	})

	if skip >= len(docs) {
		return []*Document{}, nil
	}

	docs = docs[skip:]
	if limit < len(docs) {
		docs = docs[:limit]
	}

	return docs, nil
}

func (s *documentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return ErrDocumentNotFound
	}

	delete(s.docs, id)
	return nil
}

func (s *documentStore) CountIndexed(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for _, doc := range s.docs {
		if doc.Status == StatusCompleted && doc.ChunkCount > 0 {
			n++
		}
	}

	return n, nil
}

func (s *documentStore) History(id string) []DocumentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.history[id])
}

type chatStore struct {
	mu   sync.Mutex
	msgs []ChatMessage
}

func (s *chatStore) Store(ctx context.Context, msg *ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msgs = append(s.msgs, *msg)
	return nil
}

func (s *chatStore) List(ctx context.Context, query ChatQuery) ([]*ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var msgs []*ChatMessage
	for i := len(s.msgs) - 1; i >= 0; i-- {
		msg := s.msgs[i]
		if query.SessionID != "" && msg.SessionID != query.SessionID {
			continue
		}

		msgs = append(msgs, &msg)
	}

	if query.Skip >= len(msgs) {
		return []*ChatMessage{}, nil
	}

	msgs = msgs[query.Skip:]
	if query.Limit > 0 && query.Limit < len(msgs) {
		msgs = msgs[:query.Limit]
	}

	return msgs, nil
}

type modelStore struct {
	mu     sync.Mutex
	models map[string]LLMModel
}

func newModelStore() *modelStore {
	return &modelStore{
		models: make(map[string]LLMModel),
	}
}

func (s *modelStore) Store(ctx context.Context, model *LLMModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.models[model.ID] = *model
	return nil
}

func (s *modelStore) Update(ctx context.Context, model *LLMModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[model.ID]; !ok {
		return ErrModelNotFound
	}

	s.models[model.ID] = *model
	return nil
}

func (s *modelStore) Find(ctx context.Context, id string) (*LLMModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	model, ok := s.models[id]
	if !ok {
		return nil, ErrModelNotFound
	}

	return &model, nil
}

func (s *modelStore) List(ctx context.Context, activeOnly bool) ([]*LLMModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	models := make([]*LLMModel, 0, len(s.models))
	for _, model := range s.models {
		if activeOnly && !model.IsActive {
			continue
		}

		models = append(models, &model)
	}

	return models, nil
}
