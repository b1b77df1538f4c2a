// internal/handlers/subscription.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/vidmarket-backend/internal/i18n"
	"github.com/javajoker/vidmarket-backend/internal/services"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

type SubscriptionHandler struct {
	subscriptionService *services.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

// POST /creators/:id/subscription
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	accountID, ok := requireAccountID(c)
	if !ok {
		return
	}
	creatorID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sub, err := h.subscriptionService.Subscribe(c.Request.Context(), accountID.String(), creatorID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":      i18n.T(lang, i18n.KeySubscriptionCreated),
		"subscription": sub,
	})
}

// DELETE /creators/:id/subscription
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	accountID, ok := requireAccountID(c)
	if !ok {
		return
	}
	creatorID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sub, err := h.subscriptionService.Cancel(c.Request.Context(), accountID.String(), creatorID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":      i18n.T(lang, i18n.KeySubscriptionCancelled),
		"subscription": sub,
	})
}

// GET /subscriptions
func (h *SubscriptionHandler) GetSubscriptions(c *gin.Context) {
	accountID, ok := requireAccountID(c)
	if !ok {
		return
	}

	subs, err := h.subscriptionService.List(c.Request.Context(), accountID.String())
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"subscriptions": subs,
	})
}
