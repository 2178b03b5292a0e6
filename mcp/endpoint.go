package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/docrag"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      mcp.RequestId   `json:"id"`
	Method  mcp.MCPMethod   `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func errorResponse(id any, code int, message string) mcp.JSONRPCError {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(id),
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data,omitempty"`
		}{
			Code:    code,
			Message: message,
		},
	}
}

type MCPEndpoint func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage

const MCPSERVER_INSTRUCTIONS string = `DocRAG answers questions from an indexed collection of uploaded documents.

Available tools:
- search_documents: semantic search over document chunks, ranked by relevance
- ask_documents: answer a question from the retrieved chunks, with numbered citations

Answers only use the indexed documents. When nothing relevant is indexed the answer says so.`

const (
	ToolSearchDocuments = "search_documents"
	ToolAskDocuments    = "ask_documents"
)

func Tools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(ToolSearchDocuments,
			mcp.WithDescription("Search the indexed documents and return the most relevant chunks."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Natural language search query"),
			),
			mcp.WithNumber("top_k",
				mcp.Description("Maximum number of chunks to return"),
			),
			mcp.WithString("document_id",
				mcp.Description("Restrict the search to one document"),
			),
		),
		mcp.NewTool(ToolAskDocuments,
			mcp.WithDescription("Answer a question using only the indexed documents, citing the chunks used."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Question to answer"),
			),
			mcp.WithNumber("top_k",
				mcp.Description("Number of chunks used as context"),
			),
			mcp.WithString("document_id",
				mcp.Description("Restrict the answer to one document"),
			),
			mcp.WithString("model_id",
				mcp.Description("Registered LLM model to answer with"),
			),
		),
	}
}

type toolArguments struct {
	Query      string  `json:"query"`
	TopK       float64 `json:"top_k"`
	DocumentID string  `json:"document_id"`
	ModelID    string  `json:"model_id"`
}

func InitializeEndpoint(svc docrag.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		protocolVersion := mcp.LATEST_PROTOCOL_VERSION
		if clientVersion := params.ProtocolVersion; clientVersion != "" {
			if slices.Contains(mcp.ValidProtocolVersions, clientVersion) {
				protocolVersion = clientVersion
			}
		}

		result := &mcp.InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: mcp.ServerCapabilities{
				Tools: &struct {
					ListChanged bool `json:"listChanged,omitempty"`
				}{},
			},
			ServerInfo: mcp.Implementation{
				Name:    "docrag",
				Version: "1.0.0",
			},
			Instructions: MCPSERVER_INSTRUCTIONS,
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func PingEndpoint(svc docrag.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  struct{}{},
		}
	}
}

func ListToolsEndpoint(svc docrag.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		result := &mcp.ListToolsResult{
			Tools: Tools(),
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func CallToolEndpoint(svc docrag.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		var args toolArguments
		if params.Arguments != nil {
			bs, err := json.Marshal(params.Arguments)
			if err != nil {
				return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
			}

			if err := json.Unmarshal(bs, &args); err != nil {
				return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
			}
		}

		var (
			result *mcp.CallToolResult
			err    error
		)

		switch params.Name {
		case ToolSearchDocuments:
			result, err = searchDocuments(ctx, svc, args)
		case ToolAskDocuments:
			result, err = askDocuments(ctx, svc, args)
		default:
			return errorResponse(req.ID, mcp.METHOD_NOT_FOUND, "tool not found: "+params.Name)
		}

		if err != nil {
			result = mcp.NewToolResultError(err.Error())
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func searchDocuments(ctx context.Context, svc docrag.Service, args toolArguments) (*mcp.CallToolResult, error) {
	results, err := svc.Search(ctx, docrag.SearchRequest{
		Query:      args.Query,
		TopK:       int(args.TopK),
		DocumentID: args.DocumentID,
	})
	if err != nil {
		return nil, err
	}

	bs, err := json.Marshal(results)
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(bs)), nil
}

func askDocuments(ctx context.Context, svc docrag.Service, args toolArguments) (*mcp.CallToolResult, error) {
	answer, err := svc.Generate(ctx, docrag.AnswerRequest{
		Query:      args.Query,
		TopK:       int(args.TopK),
		DocumentID: args.DocumentID,
		ModelID:    args.ModelID,
	})
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(answer.Answer)

	if len(answer.Sources) > 0 {
		b.WriteString("\n\nSources:\n")

		for i, s := range answer.Sources {
			fmt.Fprintf(&b, "[%d] %s (chunk %s, score %.2f)\n", i+1, s.Source, s.ChunkID, s.Score)
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}
