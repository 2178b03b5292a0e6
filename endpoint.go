package docrag

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
)

type EndpointSet struct {
	UploadDocument     endpoint.Endpoint
	ListDocuments      endpoint.Endpoint
	GetDocument        endpoint.Endpoint
	DeleteDocument     endpoint.Endpoint
	GetDocumentContent endpoint.Endpoint
	GetDocumentStatus  endpoint.Endpoint
	RetryDocument      endpoint.Endpoint
	CreateChatMessage  endpoint.Endpoint
	ListChatMessages   endpoint.Endpoint
	StreamChat         endpoint.Endpoint
	ListModels         endpoint.Endpoint
	CreateModel        endpoint.Endpoint
	UpdateModel        endpoint.Endpoint
	Stats              endpoint.Endpoint
	Search             endpoint.Endpoint
	Generate           endpoint.Endpoint
}

func MakeEndpoints(svc Service) EndpointSet {
	return EndpointSet{
		UploadDocument:     UploadDocumentEndpoint(svc),
		ListDocuments:      ListDocumentsEndpoint(svc),
		GetDocument:        GetDocumentEndpoint(svc),
		DeleteDocument:     DeleteDocumentEndpoint(svc),
		GetDocumentContent: GetDocumentContentEndpoint(svc),
		GetDocumentStatus:  GetDocumentStatusEndpoint(svc),
		RetryDocument:      RetryDocumentEndpoint(svc),
		CreateChatMessage:  CreateChatMessageEndpoint(svc),
		ListChatMessages:   ListChatMessagesEndpoint(svc),
		StreamChat:         StreamChatEndpoint(svc),
		ListModels:         ListModelsEndpoint(svc),
		CreateModel:        CreateModelEndpoint(svc),
		UpdateModel:        UpdateModelEndpoint(svc),
		Stats:              StatsEndpoint(svc),
		Search:             SearchEndpoint(svc),
		Generate:           GenerateEndpoint(svc),
	}
}

func UploadDocumentEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(UploadRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		doc, err := svc.UploadDocument(ctx, req)
		if err != nil {
			return nil, err
		}

		return doc.View(), nil
	}
}

type ListDocumentsRequest struct {
	Skip  int `json:"skip,omitempty" form:"skip"`
	Limit int `json:"limit,omitempty" form:"limit"`
}

func ListDocumentsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ListDocumentsRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		docs, err := svc.ListDocuments(ctx, req.Skip, req.Limit)
		if err != nil {
			return nil, err
		}

		views := make([]DocumentView, len(docs))
		for i, doc := range docs {
			views[i] = doc.View()
		}

		return views, nil
	}
}

func GetDocumentEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		id, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		doc, err := svc.GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}

		return doc.View(), nil
	}
}

func DeleteDocumentEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		id, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		err := svc.DeleteDocument(ctx, id)
		return nil, err
	}
}

func GetDocumentContentEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		id, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.GetDocumentContent(ctx, id)
	}
}

func GetDocumentStatusEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		id, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.GetDocumentStatus(ctx, id)
	}
}

func RetryDocumentEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		id, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		doc, err := svc.RetryDocument(ctx, id)
		if err != nil {
			return nil, err
		}

		return doc.View(), nil
	}
}

func CreateChatMessageEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ChatRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.CreateChatMessage(ctx, req)
	}
}

func ListChatMessagesEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		query, ok := request.(ChatQuery)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.ListChatMessages(ctx, query)
	}
}

// StreamChatEndpoint responds with an iter.Seq[StreamEvent].
func StreamChatEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ChatRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.StreamChat(ctx, req)
	}
}

type ListModelsRequest struct {
	ActiveOnly bool `json:"active_only" form:"active_only"`
}

func ListModelsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ListModelsRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.ListModels(ctx, req.ActiveOnly)
	}
}

func CreateModelEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(CreateModelRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.CreateModel(ctx, req)
	}
}

type UpdateModelRequest struct {
	ID     string         `json:"id"`
	Update LLMModelUpdate `json:"update"`
}

func UpdateModelEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(UpdateModelRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.UpdateModel(ctx, req.ID, req.Update)
	}
}

func StatsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Stats(ctx)
	}
}

func SearchEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(SearchRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Search(ctx, req)
	}
}

func GenerateEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(AnswerRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Generate(ctx, req)
	}
}
