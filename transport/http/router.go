package http

import (
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/docrag"

	mcpE "github.com/flarexio/docrag/mcp"
)

func AddRouters(r *gin.Engine, endpoints docrag.EndpointSet) {
	api := r.Group("/api")

	documents := api.Group("/documents")
	{
		documents.POST("/upload", UploadDocumentHandler(endpoints.UploadDocument))
		documents.GET("", ListDocumentsHandler(endpoints.ListDocuments))
		documents.GET("/:id", DocumentHandler(endpoints.GetDocument))
		documents.DELETE("/:id", DeleteDocumentHandler(endpoints.DeleteDocument))
		documents.GET("/:id/content", DocumentHandler(endpoints.GetDocumentContent))
		documents.GET("/:id/status", DocumentHandler(endpoints.GetDocumentStatus))
		documents.POST("/:id/retry", DocumentHandler(endpoints.RetryDocument))
	}

	chat := api.Group("/chat")
	{
		chat.POST("/messages", CreateChatMessageHandler(endpoints.CreateChatMessage))
		chat.GET("/messages", ListChatMessagesHandler(endpoints.ListChatMessages))
		chat.POST("/stream", StreamChatHandler(endpoints.StreamChat))
	}

	models := api.Group("/llm/models")
	{
		models.GET("", ListModelsHandler(endpoints.ListModels))
		models.POST("", CreateModelHandler(endpoints.CreateModel))
		models.PUT("/:id", UpdateModelHandler(endpoints.UpdateModel))
	}

	rag := api.Group("/rag")
	{
		rag.GET("/stats", StatsHandler(endpoints.Stats))
		rag.GET("/search", SearchHandler(endpoints.Search))
		rag.POST("/search", SearchHandler(endpoints.Search))
		rag.POST("/generate", GenerateHandler(endpoints.Generate))
	}
}

func AddStreamableRouters(r *gin.Engine, endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint) {
	mcp := r.Group("/mcp")
	{
		mcp.POST("/", MCPStreamableHandler(endpoints))
	}
}
