package nats

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/docrag"
)

// errorCode follows the HTTP status codes of the same failures.
func errorCode(err error) string {
	switch {
	case errors.Is(err, docrag.ErrDocumentNotFound),
		errors.Is(err, docrag.ErrModelNotFound):
		return "404"

	case errors.Is(err, docrag.ErrEmptyQuery),
		errors.Is(err, docrag.ErrModelInactive):
		return "400"

	default:
		return "417"
	}
}

// jsonHandler decodes the request payload into T, calls the endpoint and
// responds with its result as JSON.
func jsonHandler[T any](endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req T
		if data := r.Data(); len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				r.Error("400", err.Error(), nil)
				return
			}
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			r.Error(errorCode(err), err.Error(), nil)
			return
		}

		r.RespondJSON(&resp)
	}
}

func SearchHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return jsonHandler[docrag.SearchRequest](endpoint)
}

func GenerateHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return jsonHandler[docrag.AnswerRequest](endpoint)
}

func CreateChatMessageHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return jsonHandler[docrag.ChatRequest](endpoint)
}

func ListChatMessagesHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return jsonHandler[docrag.ChatQuery](endpoint)
}

func ListModelsHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return jsonHandler[docrag.ListModelsRequest](endpoint)
}

func StatsHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		ctx := context.Background()
		resp, err := endpoint(ctx, nil)
		if err != nil {
			r.Error(errorCode(err), err.Error(), nil)
			return
		}

		r.RespondJSON(&resp)
	}
}

func DocumentStatusHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		id := string(r.Data())
		if id == "" {
			r.Error("400", "document id is required", nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, id)
		if err != nil {
			r.Error(errorCode(err), err.Error(), nil)
			return
		}

		r.RespondJSON(&resp)
	}
}
