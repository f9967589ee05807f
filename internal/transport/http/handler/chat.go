package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flagstone-assistant/internal/transport/http/response"
)

type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

type ChatHandler struct {
	answerer Answerer
	log      *zap.Logger
}

type ChatRequest struct {
	Message string `json:"message"`
}

func NewChatHandler(answerer Answerer, log *zap.Logger) *ChatHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatHandler{answerer: answerer, log: log}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeBadRequest, "invalid input", "invalid request payload")
		return
	}

	answer, err := h.answerer.Answer(c.Request.Context(), req.Message)
	if err != nil {
		h.log.Error("answer question failed", zap.Error(err))
		writeError(c, err, "chat failed")
		return
	}
	response.OK(c, gin.H{"response": answer})
}
