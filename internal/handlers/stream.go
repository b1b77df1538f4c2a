// internal/handlers/stream.go
package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/services"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

type StreamHandler struct {
	streamingService *services.StreamingService
}

func NewStreamHandler(streamingService *services.StreamingService) *StreamHandler {
	return &StreamHandler{
		streamingService: streamingService,
	}
}

// GET /assets/:id/stream
func (h *StreamHandler) Stream(c *gin.Context) {
	assetID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	c.Header("Accept-Ranges", "bytes")

	stream, err := h.streamingService.Serve(c.Request.Context(), services.ServeInput{
		AssetID:     assetID,
		RequesterID: viewerID(c, assetID),
		ClientIP:    c.ClientIP(),
		RangeHeader: c.GetHeader("Range"),
	})
	if err != nil {
		if appErr := apperrors.As(err); appErr.Kind == apperrors.KindRangeNotSatisfiable {
			if total, ok := appErr.Details["total_length"].(int64); ok {
				c.Header("Content-Range", fmt.Sprintf("bytes */%d", total))
			}
		}
		utils.ServiceErrorResponse(c, err)
		return
	}

	defer stream.Body.Close()

	headers := map[string]string{
		"Cache-Control": "private, no-store",
	}
	if stream.ContentRange != "" {
		headers["Content-Range"] = stream.ContentRange
	}

	c.DataFromReader(stream.Status, stream.ContentLength, stream.ContentType, stream.Body, headers)
}
