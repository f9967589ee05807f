package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flagstone-assistant/internal/app"
	"flagstone-assistant/internal/transport/http/response"
)

type CacheClearer interface {
	ClearCache(ctx context.Context) error
}

type CacheHandler struct {
	settings *app.Settings
	clearer  CacheClearer
	log      *zap.Logger
}

type SetCacheRequest struct {
	Enabled *bool `json:"enabled"`
}

func NewCacheHandler(settings *app.Settings, clearer CacheClearer, log *zap.Logger) *CacheHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CacheHandler{settings: settings, clearer: clearer, log: log}
}

func (h *CacheHandler) Set(c *gin.Context) {
	var req SetCacheRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeBadRequest, "invalid input", "enabled must be a boolean")
		return
	}
	h.settings.SetCacheEnabled(*req.Enabled)
	h.log.Info("generation cache toggled", zap.Bool("enabled", *req.Enabled))
	response.OK(c, gin.H{"success": true, "enabled": *req.Enabled})
}

func (h *CacheHandler) Clear(c *gin.Context) {
	if err := h.clearer.ClearCache(c.Request.Context()); err != nil {
		h.log.Error("clear generation cache failed", zap.Error(err))
		response.ErrorWithDetails(c, http.StatusBadGateway, response.CodeGenerationFailed, "failed to clear cache", err.Error())
		return
	}
	h.log.Info("generation cache cleared")
	response.OK(c, gin.H{"success": true})
}
