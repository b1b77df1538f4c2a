// internal/handlers/account.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/vidmarket-backend/internal/i18n"
	"github.com/javajoker/vidmarket-backend/internal/services"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

type AccountHandler struct {
	accountService *services.AccountService
}

func NewAccountHandler(accountService *services.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// PUT /accounts/me
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	accountID, ok := requireAccountID(c)
	if !ok {
		return
	}

	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	account, err := h.accountService.UpdateProfile(c.Request.Context(), accountID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAccountProfileUpdated),
		"account": account,
	})
}

// GET /accounts/:id
func (h *AccountHandler) GetPublicProfile(c *gin.Context) {
	accountID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	profile, err := h.accountService.GetPublicProfile(c.Request.Context(), accountID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"account": profile,
	})
}
