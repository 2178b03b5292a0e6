package docrag

import (
	"context"
	"iter"

	"go.uber.org/zap"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "docrag"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) UploadDocument(ctx context.Context, req UploadRequest) (*Document, error) {
	log := mw.log.With(
		zap.String("action", "upload_document"),
		zap.String("filename", req.Filename),
		zap.Int("size", len(req.Data)),
	)

	doc, err := mw.next.UploadDocument(ctx, req)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("document uploaded", zap.String("document_id", doc.ID))
	return doc, nil
}

func (mw *loggingMiddleware) ListDocuments(ctx context.Context, skip int, limit int) ([]*Document, error) {
	log := mw.log.With(
		zap.String("action", "list_documents"),
		zap.Int("skip", skip),
		zap.Int("limit", limit),
	)

	docs, err := mw.next.ListDocuments(ctx, skip, limit)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Debug("documents listed", zap.Int("count", len(docs)))
	return docs, nil
}

func (mw *loggingMiddleware) GetDocument(ctx context.Context, id string) (*Document, error) {
	log := mw.log.With(
		zap.String("action", "get_document"),
		zap.String("document_id", id),
	)

	doc, err := mw.next.GetDocument(ctx, id)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	return doc, nil
}

func (mw *loggingMiddleware) DeleteDocument(ctx context.Context, id string) error {
	log := mw.log.With(
		zap.String("action", "delete_document"),
		zap.String("document_id", id),
	)

	err := mw.next.DeleteDocument(ctx, id)
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("document deleted")
	return nil
}

func (mw *loggingMiddleware) GetDocumentContent(ctx context.Context, id string) (*DocumentContent, error) {
	log := mw.log.With(
		zap.String("action", "get_document_content"),
		zap.String("document_id", id),
	)

	content, err := mw.next.GetDocumentContent(ctx, id)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	return content, nil
}

func (mw *loggingMiddleware) GetDocumentStatus(ctx context.Context, id string) (*ProcessingStatus, error) {
	log := mw.log.With(
		zap.String("action", "get_document_status"),
		zap.String("document_id", id),
	)

	status, err := mw.next.GetDocumentStatus(ctx, id)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	return status, nil
}

func (mw *loggingMiddleware) RetryDocument(ctx context.Context, id string) (*Document, error) {
	log := mw.log.With(
		zap.String("action", "retry_document"),
		zap.String("document_id", id),
	)

	doc, err := mw.next.RetryDocument(ctx, id)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("document queued for retry")
	return doc, nil
}

func (mw *loggingMiddleware) CreateChatMessage(ctx context.Context, req ChatRequest) (*ChatMessage, error) {
	log := mw.log.With(
		zap.String("action", "create_chat_message"),
		zap.String("session_id", req.SessionID),
	)

	if req.ModelID != "" {
		log = log.With(
			zap.String("model_id", req.ModelID),
		)
	}

	msg, err := mw.next.CreateChatMessage(ctx, req)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("chat message created",
		zap.String("message_id", msg.ID),
		zap.String("model_used", msg.ModelUsed),
	)

	return msg, nil
}

func (mw *loggingMiddleware) ListChatMessages(ctx context.Context, query ChatQuery) ([]*ChatMessage, error) {
	log := mw.log.With(
		zap.String("action", "list_chat_messages"),
		zap.String("session_id", query.SessionID),
	)

	msgs, err := mw.next.ListChatMessages(ctx, query)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Debug("chat messages listed", zap.Int("count", len(msgs)))
	return msgs, nil
}

func (mw *loggingMiddleware) StreamChat(ctx context.Context, req ChatRequest) (iter.Seq[StreamEvent], error) {
	log := mw.log.With(
		zap.String("action", "stream_chat"),
		zap.String("session_id", req.SessionID),
	)

	events, err := mw.next.StreamChat(ctx, req)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	return func(yield func(StreamEvent) bool) {
		var n int
		for event := range events {
			switch event.Type {
			case EventContent:
				n++
			case EventError:
				log.Error(event.Error)
			case EventDone:
				log.Info("stream completed", zap.Int("chunks", n))
			}

			if !yield(event) {
				log.Warn("stream aborted by client")
				return
			}
		}
	}, nil
}

func (mw *loggingMiddleware) ListModels(ctx context.Context, activeOnly bool) ([]*LLMModel, error) {
	log := mw.log.With(
		zap.String("action", "list_models"),
		zap.Bool("active_only", activeOnly),
	)

	models, err := mw.next.ListModels(ctx, activeOnly)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	return models, nil
}

func (mw *loggingMiddleware) CreateModel(ctx context.Context, req CreateModelRequest) (*LLMModel, error) {
	log := mw.log.With(
		zap.String("action", "create_model"),
		zap.String("provider", req.Provider),
		zap.String("model_name", req.ModelName),
	)

	model, err := mw.next.CreateModel(ctx, req)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("model created", zap.String("model_id", model.ID))
	return model, nil
}

func (mw *loggingMiddleware) UpdateModel(ctx context.Context, id string, update LLMModelUpdate) (*LLMModel, error) {
	log := mw.log.With(
		zap.String("action", "update_model"),
		zap.String("model_id", id),
	)

	model, err := mw.next.UpdateModel(ctx, id, update)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("model updated")
	return model, nil
}

func (mw *loggingMiddleware) Stats(ctx context.Context) (*Stats, error) {
	log := mw.log.With(
		zap.String("action", "stats"),
	)

	stats, err := mw.next.Stats(ctx)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	return stats, nil
}

func (mw *loggingMiddleware) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	log := mw.log.With(
		zap.String("action", "search"),
		zap.String("query", req.Query),
	)

	if req.TopK > 0 {
		log = log.With(
			zap.Int("top_k", req.TopK),
		)
	}

	results, err := mw.next.Search(ctx, req)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("documents searched", zap.Int("count", len(results)))
	return results, nil
}

func (mw *loggingMiddleware) Generate(ctx context.Context, req AnswerRequest) (*Answer, error) {
	log := mw.log.With(
		zap.String("action", "generate"),
		zap.String("query", req.Query),
	)

	answer, err := mw.next.Generate(ctx, req)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("answer generated",
		zap.String("strategy", string(answer.Strategy)),
		zap.Float64("confidence", answer.Confidence),
	)

	return answer, nil
}
