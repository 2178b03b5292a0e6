package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/docrag"
)

func AddEndpoints(group micro.Group, endpoints docrag.EndpointSet) {
	group.AddEndpoint("search", SearchHandler(endpoints.Search))
	group.AddEndpoint("generate", GenerateHandler(endpoints.Generate))
	group.AddEndpoint("stats", StatsHandler(endpoints.Stats))
	group.AddEndpoint("document_status", DocumentStatusHandler(endpoints.GetDocumentStatus))
	group.AddEndpoint("create_chat_message", CreateChatMessageHandler(endpoints.CreateChatMessage))
	group.AddEndpoint("list_chat_messages", ListChatMessagesHandler(endpoints.ListChatMessages))
	group.AddEndpoint("list_models", ListModelsHandler(endpoints.ListModels))
}
