package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"flagstone-assistant/internal/model"
	"flagstone-assistant/internal/transport/http/response"
)

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]model.Exchange, error)
}

type HistoryHandler struct {
	history HistoryReader
}

func NewHistoryHandler(history HistoryReader) *HistoryHandler {
	return &HistoryHandler{history: history}
}

func (h *HistoryHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeBadRequest, "invalid input", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	exchanges, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err, "list history failed")
		return
	}
	response.OK(c, gin.H{"exchanges": exchanges})
}
