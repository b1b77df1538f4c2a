// internal/handlers/asset.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/vidmarket-backend/internal/i18n"
	"github.com/javajoker/vidmarket-backend/internal/services"
	"github.com/javajoker/vidmarket-backend/internal/store"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

type AssetHandler struct {
	assetService    *services.AssetService
	purchaseService *services.PurchaseService
}

func NewAssetHandler(assetService *services.AssetService, purchaseService *services.PurchaseService) *AssetHandler {
	return &AssetHandler{
		assetService:    assetService,
		purchaseService: purchaseService,
	}
}

// GET /assets
func (h *AssetHandler) GetAssets(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := store.AssetFilter{
		PaginationParams: params,
	}

	if creatorIDStr := c.Query("creator"); creatorIDStr != "" {
		if creatorID, err := uuid.Parse(creatorIDStr); err == nil {
			filter.CreatorID = &creatorID
		}
	}

	if trending, err := strconv.ParseBool(c.Query("trending")); err == nil {
		filter.Trending = trending
	}

	assets, total, err := h.assetService.ListAssets(c.Request.Context(), filter)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(assets, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /assets
func (h *AssetHandler) CreateAsset(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	creatorID, ok := requireAccountID(c)
	if !ok {
		return
	}

	var req services.CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	asset, err := h.assetService.CreateAsset(c.Request.Context(), creatorID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAssetCreated),
		"asset":   asset,
	})
}

// GET /assets/:id
func (h *AssetHandler) GetAsset(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	asset, err := h.assetService.GetAsset(c.Request.Context(), id)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"asset": asset,
	})
}

// PATCH /assets/:id/views
func (h *AssetHandler) IncrementViews(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	count, err := h.assetService.IncrementViews(c.Request.Context(), id)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"asset_id":   id,
		"view_count": count,
	})
}

// GET /assets/:id/access
func (h *AssetHandler) GetAccess(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	buyer := services.NormalizeBuyerID(viewerID(c, id))
	hasAccess, err := h.purchaseService.HasAccess(c.Request.Context(), id, buyer)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"asset_id":   id,
		"buyer_id":   buyer,
		"has_access": hasAccess,
	})
}
