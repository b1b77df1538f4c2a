// internal/handlers/health.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/vidmarket-backend/internal/contentstore"
	"github.com/javajoker/vidmarket-backend/internal/store"
)

const healthTimeout = 3 * time.Second

type HealthHandler struct {
	gateway store.Gateway
	content *contentstore.Router
	version string
}

func NewHealthHandler(gateway store.Gateway, content *contentstore.Router, version string) *HealthHandler {
	return &HealthHandler{
		gateway: gateway,
		content: content,
		version: version,
	}
}

// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := gin.H{
		"database":      "ok",
		"content_store": "ok",
	}
	status := http.StatusOK

	if err := h.gateway.Ping(ctx); err != nil {
		logrus.WithError(err).Warn("Health check: database unreachable")
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if err := h.content.IsReady(ctx); err != nil {
		logrus.WithError(err).Warn("Health check: content store unreachable")
		checks["content_store"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}

	c.JSON(status, gin.H{
		"status":  state,
		"version": h.version,
		"checks":  checks,
	})
}
