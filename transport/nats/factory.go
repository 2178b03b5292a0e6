package nats

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/docrag"
)

// Generation waits on a remote LLM, so it gets a longer deadline than the
// default request timeout.
const GenerateTimeout = 2 * time.Minute

// MakeEndpoints builds client endpoints for the subjects served by
// AddEndpoints under prefix.
func MakeEndpoints(nc *nats.Conn, prefix string) *docrag.EndpointSet {
	return &docrag.EndpointSet{
		Search:            requestEndpoint[docrag.SearchRequest, []docrag.SearchResult](nc, prefix+".search", nats.DefaultTimeout),
		Generate:          requestEndpoint[docrag.AnswerRequest, *docrag.Answer](nc, prefix+".generate", GenerateTimeout),
		Stats:             StatsEndpoint(nc, prefix+".stats"),
		GetDocumentStatus: DocumentStatusEndpoint(nc, prefix+".document_status"),
		CreateChatMessage: requestEndpoint[docrag.ChatRequest, *docrag.ChatMessage](nc, prefix+".create_chat_message", GenerateTimeout),
		ListChatMessages:  requestEndpoint[docrag.ChatQuery, []*docrag.ChatMessage](nc, prefix+".list_chat_messages", nats.DefaultTimeout),
		ListModels:        requestEndpoint[docrag.ListModelsRequest, []*docrag.LLMModel](nc, prefix+".list_models", nats.DefaultTimeout),
	}
}

func call[Resp any](ctx context.Context, nc *nats.Conn, topic string, data []byte, timeout time.Duration) (Resp, error) {
	var result Resp

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := nc.RequestWithContext(ctx, topic, data)
	if err != nil {
		return result, err
	}

	if err := Error(resp); err != nil {
		return result, err
	}

	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return result, err
	}

	return result, nil
}

func requestEndpoint[Req any, Resp any](nc *nats.Conn, topic string, timeout time.Duration) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(Req)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		return call[Resp](ctx, nc, topic, data, timeout)
	}
}

func StatsEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return call[*docrag.Stats](ctx, nc, topic, nil, nats.DefaultTimeout)
	}
}

func DocumentStatusEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		id, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request")
		}

		return call[*docrag.ProcessingStatus](ctx, nc, topic, []byte(id), nats.DefaultTimeout)
	}
}

func Error(msg *nats.Msg) error {
	if msg == nil {
		return errors.New("nil message")
	}

	code := msg.Header.Get(micro.ErrorCodeHeader)
	if code == "" {
		return nil
	}

	description := msg.Header.Get(micro.ErrorHeader)
	if description == "" {
		description = "unknown error"
	}

	return errors.New(code + ":" + description)
}
