package docrag

import (
	"context"
	"errors"
	"iter"
)

// ProxyMiddleware serves the service remotely through the given endpoints.
// Only the retrieval surface is reachable this way.
func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

var ErrMethodNotImplemented = errors.New("method not implemented")

type proxyMiddleware struct {
	endpoints *EndpointSet
}

func (mw *proxyMiddleware) Close() error {
	return ErrMethodNotImplemented
}

func (mw *proxyMiddleware) UploadDocument(ctx context.Context, req UploadRequest) (*Document, error) {
	return nil, ErrMethodNotImplemented
}

func (mw *proxyMiddleware) ListDocuments(ctx context.Context, skip int, limit int) ([]*Document, error) {
	return nil, ErrMethodNotImplemented
}

func (mw *proxyMiddleware) GetDocument(ctx context.Context, id string) (*Document, error) {
	return nil, ErrMethodNotImplemented
}

func (mw *proxyMiddleware) DeleteDocument(ctx context.Context, id string) error {
	return ErrMethodNotImplemented
}

func (mw *proxyMiddleware) GetDocumentContent(ctx context.Context, id string) (*DocumentContent, error) {
	return nil, ErrMethodNotImplemented
}

func (mw *proxyMiddleware) GetDocumentStatus(ctx context.Context, id string) (*ProcessingStatus, error) {
	resp, err := mw.endpoints.GetDocumentStatus(ctx, id)
	if err != nil {
		return nil, err
	}

	status, ok := resp.(*ProcessingStatus)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return status, nil
}

func (mw *proxyMiddleware) RetryDocument(ctx context.Context, id string) (*Document, error) {
	return nil, ErrMethodNotImplemented
}

func (mw *proxyMiddleware) CreateChatMessage(ctx context.Context, req ChatRequest) (*ChatMessage, error) {
	resp, err := mw.endpoints.CreateChatMessage(ctx, req)
	if err != nil {
		return nil, err
	}

	msg, ok := resp.(*ChatMessage)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return msg, nil
}

func (mw *proxyMiddleware) ListChatMessages(ctx context.Context, query ChatQuery) ([]*ChatMessage, error) {
	resp, err := mw.endpoints.ListChatMessages(ctx, query)
	if err != nil {
		return nil, err
	}

	msgs, ok := resp.([]*ChatMessage)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return msgs, nil
}

func (mw *proxyMiddleware) StreamChat(ctx context.Context, req ChatRequest) (iter.Seq[StreamEvent], error) {
	return nil, ErrMethodNotImplemented
}

func (mw *proxyMiddleware) ListModels(ctx context.Context, activeOnly bool) ([]*LLMModel, error) {
	req := ListModelsRequest{
		ActiveOnly: activeOnly,
	}

	resp, err := mw.endpoints.ListModels(ctx, req)
	if err != nil {
		return nil, err
	}

	models, ok := resp.([]*LLMModel)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return models, nil
}

func (mw *proxyMiddleware) CreateModel(ctx context.Context, req CreateModelRequest) (*LLMModel, error) {
	return nil, ErrMethodNotImplemented
}

func (mw *proxyMiddleware) UpdateModel(ctx context.Context, id string, update LLMModelUpdate) (*LLMModel, error) {
	return nil, ErrMethodNotImplemented
}

func (mw *proxyMiddleware) Stats(ctx context.Context) (*Stats, error) {
	resp, err := mw.endpoints.Stats(ctx, nil)
	if err != nil {
		return nil, err
	}

	stats, ok := resp.(*Stats)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return stats, nil
}

func (mw *proxyMiddleware) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	resp, err := mw.endpoints.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	results, ok := resp.([]SearchResult)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return results, nil
}

func (mw *proxyMiddleware) Generate(ctx context.Context, req AnswerRequest) (*Answer, error) {
	resp, err := mw.endpoints.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	answer, ok := resp.(*Answer)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return answer, nil
}
