package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"

	"github.com/flarexio/docrag"
)

func TestUnmarshalInitializeRequest(t *testing.T) {
	assert := assert.New(t)

	input := []byte(`{
	  "jsonrpc": "2.0",
	  "id": 1,
	  "method": "initialize",
	  "params": {
	    "protocolVersion": "2024-11-05",
	    "capabilities": {},
	    "clientInfo": {
	      "name": "ExampleClient",
	      "version": "1.0.0"
	    }
	  }
	}`)

	var req JSONRPCRequest
	if err := json.Unmarshal(input, &req); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(mcp.NewRequestId(int64(1)), req.ID)
	assert.Equal(mcp.MethodInitialize, req.Method)

	resp, ok := InitializeEndpoint(nil)(context.Background(), req).(mcp.JSONRPCResponse)
	if !assert.True(ok) {
		return
	}

	result, ok := resp.Result.(*mcp.InitializeResult)
	if !assert.True(ok) {
		return
	}

	assert.Equal("2024-11-05", result.ProtocolVersion)
	assert.Equal("docrag", result.ServerInfo.Name)
}

func TestListTools(t *testing.T) {
	assert := assert.New(t)

	req := JSONRPCRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(int64(2)),
		Method:  mcp.MethodToolsList,
	}

	resp, ok := ListToolsEndpoint(nil)(context.Background(), req).(mcp.JSONRPCResponse)
	if !assert.True(ok) {
		return
	}

	result, ok := resp.Result.(*mcp.ListToolsResult)
	if !assert.True(ok) {
		return
	}

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}

	assert.Equal([]string{ToolSearchDocuments, ToolAskDocuments}, names)
}

// remoteService answers through stub endpoints.
func remoteService() docrag.Service {
	endpoints := &docrag.EndpointSet{
		Search: func(ctx context.Context, request any) (any, error) {
			req := request.(docrag.SearchRequest)

			return []docrag.SearchResult{
				{
					ID:         "d1_0",
					DocumentID: "d1",
					ChunkID:    "0",
					Text:       "Paris is the capital of France.",
					Score:      0.9,
					Rank:       req.TopK,
				},
			}, nil
		},
		Generate: func(ctx context.Context, request any) (any, error) {
			req := request.(docrag.AnswerRequest)
			if req.Query == "" {
				return nil, docrag.ErrEmptyQuery
			}

			return &docrag.Answer{
				Answer: "Paris [1].",
				Sources: []docrag.Source{
					{DocumentID: "d1", ChunkID: "0", Source: "paris.txt", Score: 0.9},
				},
				Strategy: docrag.StrategyGenerated,
			}, nil
		},
	}

	var svc docrag.Service
	return docrag.ProxyMiddleware(endpoints)(svc)
}

func callTool(t *testing.T, input string) mcp.JSONRPCMessage {
	var req JSONRPCRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		t.Fatal(err)
	}

	return CallToolEndpoint(remoteService())(context.Background(), req)
}

func toolText(t *testing.T, msg mcp.JSONRPCMessage) (string, bool) {
	resp, ok := msg.(mcp.JSONRPCResponse)
	if !ok {
		t.Fatalf("unexpected message: %#v", msg)
	}

	result, ok := resp.Result.(*mcp.CallToolResult)
	if !ok || len(result.Content) == 0 {
		t.Fatalf("unexpected result: %#v", resp.Result)
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content: %#v", result.Content[0])
	}

	return text.Text, result.IsError
}

func TestCallSearchDocuments(t *testing.T) {
	assert := assert.New(t)

	msg := callTool(t, `{
	  "jsonrpc": "2.0",
	  "id": 3,
	  "method": "tools/call",
	  "params": {
	    "name": "search_documents",
	    "arguments": {"query": "capital of France", "top_k": 3}
	  }
	}`)

	text, isError := toolText(t, msg)
	assert.False(isError)

	var results []docrag.SearchResult
	if err := json.Unmarshal([]byte(text), &results); err != nil {
		assert.Fail(err.Error())
		return
	}

	if assert.Len(results, 1) {
		assert.Equal("d1_0", results[0].ID)
		assert.Equal(3, results[0].Rank)
	}
}

func TestCallAskDocuments(t *testing.T) {
	assert := assert.New(t)

	msg := callTool(t, `{
	  "jsonrpc": "2.0",
	  "id": 4,
	  "method": "tools/call",
	  "params": {
	    "name": "ask_documents",
	    "arguments": {"query": "What is the capital of France?"}
	  }
	}`)

	text, isError := toolText(t, msg)
	assert.False(isError)
	assert.Contains(text, "Paris [1].")
	assert.Contains(text, "[1] paris.txt (chunk 0, score 0.90)")

	msg = callTool(t, `{
	  "jsonrpc": "2.0",
	  "id": 5,
	  "method": "tools/call",
	  "params": {"name": "ask_documents", "arguments": {}}
	}`)

	text, isError = toolText(t, msg)
	assert.True(isError)
	assert.Equal(docrag.ErrEmptyQuery.Error(), text)
}

func TestCallUnknownTool(t *testing.T) {
	assert := assert.New(t)

	msg := callTool(t, `{
	  "jsonrpc": "2.0",
	  "id": 6,
	  "method": "tools/call",
	  "params": {"name": "get_weather"}
	}`)

	resp, ok := msg.(mcp.JSONRPCError)
	if !assert.True(ok) {
		return
	}

	assert.Equal(mcp.METHOD_NOT_FOUND, resp.Error.Code)
}
