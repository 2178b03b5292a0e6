package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/flarexio/docrag"
	"github.com/flarexio/docrag/blob"
)

// StatusCode maps service errors onto HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, docrag.ErrDocumentNotFound),
		errors.Is(err, docrag.ErrModelNotFound),
		errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, docrag.ErrEmptyFile),
		errors.Is(err, docrag.ErrMissingFilename),
		errors.Is(err, docrag.ErrUnsupportedFileType),
		errors.Is(err, docrag.ErrFileTooLarge),
		errors.Is(err, docrag.ErrEmptyQuery),
		errors.Is(err, docrag.ErrInvalidModel),
		errors.Is(err, docrag.ErrModelInactive),
		errors.Is(err, docrag.ErrUnsupportedProvider),
		errors.Is(err, docrag.ErrNotRetryable):
		return http.StatusBadRequest

	case errors.Is(err, docrag.ErrQueueFull):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"detail": err.Error()})
	c.Error(err)
	c.Abort()
}

func UploadDocumentHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			abort(c, http.StatusBadRequest, docrag.ErrMissingFilename)
			return
		}

		f, err := fh.Open()
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		uploader := c.Query("uploader_id")
		if uploader == "" {
			uploader = c.PostForm("uploader_id")
		}

		req := docrag.UploadRequest{
			Filename:   fh.Filename,
			Data:       data,
			UploaderID: uploader,
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func ListDocumentsHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req docrag.ListDocumentsRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

// DocumentHandler serves every endpoint keyed by the document id path
// parameter.
func DocumentHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == "" {
			abort(c, http.StatusBadRequest, errors.New("document id is required"))
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, id)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func DeleteDocumentHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		ctx := c.Request.Context()
		_, err := endpoint(ctx, id)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Document deleted successfully"})
	}
}

func CreateChatMessageHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req docrag.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func ListChatMessagesHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query docrag.ChatQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, query)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

// StreamChatHandler writes every event as a `data: <json>` line followed
// by a blank line, flushing after each one.
func StreamChatHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req docrag.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		events, ok := resp.(iter.Seq[docrag.StreamEvent])
		if !ok {
			abort(c, http.StatusInternalServerError, errors.New("invalid response type"))
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Status(http.StatusOK)

		for event := range events {
			bs, err := json.Marshal(&event)
			if err != nil {
				c.Error(err)
				return
			}

			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", bs); err != nil {
				c.Error(err)
				return
			}

			c.Writer.Flush()
		}
	}
}

func ListModelsHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req docrag.ListModelsRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func CreateModelHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req docrag.CreateModelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func UpdateModelHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var update docrag.LLMModelUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		req := docrag.UpdateModelRequest{
			ID:     c.Param("id"),
			Update: update,
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func StatsHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		resp, err := endpoint(ctx, nil)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func SearchHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req docrag.SearchRequest
		if err := c.ShouldBind(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"query":   req.Query,
			"results": resp,
		})
	}
}

func GenerateHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req docrag.AnswerRequest
		if err := c.ShouldBind(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}
