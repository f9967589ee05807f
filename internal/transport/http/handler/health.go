package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type IndexProbe interface {
	Heartbeat(ctx context.Context) error
	Count(ctx context.Context, collection string) (int, error)
}

type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Check probes one optional dependency.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthInfo struct {
	App        string
	Env        string
	Collection string
	Backend    string
	StartedAt  time.Time
}

type HealthHandler struct {
	info   HealthInfo
	index  IndexProbe
	models ModelLister
	checks []Check
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(info HealthInfo, index IndexProbe, models ModelLister, checks ...Check) *HealthHandler {
	return &HealthHandler{info: info, index: index, models: models, checks: checks}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := gin.H{}
	allOK := true

	indexStatus := dependencyStatus{OK: true}
	passages := -1
	if err := h.index.Heartbeat(ctx); err != nil {
		indexStatus = dependencyStatus{OK: false, Message: err.Error()}
	} else if n, err := h.index.Count(ctx, h.info.Collection); err != nil {
		indexStatus = dependencyStatus{OK: false, Message: err.Error()}
	} else {
		passages = n
	}
	deps["index"] = indexStatus
	allOK = allOK && indexStatus.OK

	models, err := h.models.ListModels(ctx)
	genStatus := dependencyStatus{OK: err == nil}
	if err != nil {
		genStatus.Message = err.Error()
	}
	deps["generation"] = genStatus
	allOK = allOK && genStatus.OK

	for _, check := range h.checks {
		status := dependencyStatus{OK: true}
		if err := check.Ping(ctx); err != nil {
			status = dependencyStatus{OK: false, Message: err.Error()}
			allOK = false
		}
		deps[check.Name] = status
	}

	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"app":           h.info.App,
		"env":           h.info.Env,
		"uptime_sec":    int(time.Since(h.info.StartedAt).Seconds()),
		"index_backend": h.info.Backend,
		"collection":    h.info.Collection,
		"passages":      passages,
		"models":        models,
		"dependencies":  deps,
	})
}
