package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"flagstone-assistant/internal/app"
	"flagstone-assistant/internal/corpus"
	"flagstone-assistant/internal/index"
	"flagstone-assistant/internal/transport/http/response"
)

// writeError maps service errors to the response envelope.
func writeError(c *gin.Context, err error, fallback string) {
	var genErr *app.GenerationError
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeBadRequest, "invalid input", err.Error())
	case errors.Is(err, corpus.ErrInvalidDocument):
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeInvalidDocument, "invalid document", err.Error())
	case errors.Is(err, app.ErrEmptyResponse):
		response.ErrorWithDetails(c, http.StatusBadGateway, response.CodeEmptyResponse, "empty response", "the model returned no usable text")
	case errors.As(err, &genErr):
		details := genErr.Err.Error()
		if genErr.StatusCode > 0 {
			details = fmt.Sprintf("upstream status %d: %s", genErr.StatusCode, details)
		}
		response.ErrorWithDetails(c, http.StatusBadGateway, response.CodeGenerationFailed, "generation failed", details)
	case errors.Is(err, app.ErrRetrieval):
		response.ErrorWithDetails(c, http.StatusServiceUnavailable, response.CodeRetrievalFailed, "retrieval failed", err.Error())
	case errors.Is(err, index.ErrUnavailable):
		response.ErrorWithDetails(c, http.StatusServiceUnavailable, response.CodeIndexUnavailable, "index unavailable", err.Error())
	default:
		response.ErrorWithDetails(c, http.StatusInternalServerError, response.CodeInternalServer, fallback, err.Error())
	}
}
