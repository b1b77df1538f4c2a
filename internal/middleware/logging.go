// internal/middleware/logging.go
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/store"
)

// maxAuditBody caps how much of a JSON body is copied into the audit log.
const maxAuditBody = 64 << 10

// sensitiveFields never reach the audit log.
var sensitiveFields = []string{"password", "refresh_token", "signed_transaction"}

// AuditLogMiddleware records every state changing request through the
// gateway. The write happens after the response on its own goroutine.
func AuditLogMiddleware(gateway store.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for reads and health checks
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		var requestData map[string]interface{}
		if strings.HasPrefix(c.ContentType(), "application/json") && c.Request.Body != nil {
			requestBody, _ := io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(requestBody), c.Request.Body))
			if len(requestBody) > 0 {
				_ = json.Unmarshal(requestBody, &requestData)
			}
			for _, field := range sensitiveFields {
				delete(requestData, field)
			}
		}

		c.Next()

		auditLog := &models.AuditLog{
			AccountID:    accountUUID(c),
			Action:       c.Request.Method + " " + c.FullPath(),
			ResourceType: extractResourceType(c.Request.URL.Path),
			Status:       c.Writer.Status(),
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			NewValues:    models.JSONB(requestData),
		}

		// Extract resource ID from URL if present
		if resourceID := extractResourceID(c.Request.URL.Path); resourceID != "" {
			if parsed, err := uuid.Parse(resourceID); err == nil {
				auditLog.ResourceID = &parsed
			}
		}

		// Save audit log asynchronously
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := gateway.CreateAuditLog(ctx, auditLog); err != nil {
				logrus.WithError(err).Error("Failed to create audit log")
			}
		}()
	}
}

func accountUUID(c *gin.Context) *uuid.UUID {
	accountID, exists := c.Get("account_id")
	if !exists {
		return nil
	}
	if id, ok := accountID.(string); ok {
		if parsed, err := uuid.Parse(id); err == nil {
			return &parsed
		}
	}
	return nil
}

func extractResourceType(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "v1" {
		return parts[1]
	}
	if len(parts) >= 1 && parts[0] != "" {
		return parts[0]
	}
	return "unknown"
}

func extractResourceID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, part := range parts {
		if _, err := uuid.Parse(part); err == nil {
			return part
		}
	}
	return ""
}

// RequestLogger logs one structured line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		accountID, _ := c.Get("account_id")
		entry := logrus.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
			"account_id": accountID,
		})

		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("Request processed")
		case status >= 400:
			entry.Warn("Request processed")
		default:
			entry.Info("Request processed")
		}
	}
}
