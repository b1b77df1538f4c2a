// internal/handlers/purchase.go
package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/i18n"
	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/services"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

type PurchaseHandler struct {
	purchaseService *services.PurchaseService
	paymentService  *services.PaymentService
}

// PurchaseRequest drives POST /assets/:id/purchase. Without a reference it
// returns a quote; with signed_transaction it relays the transfer first.
type PurchaseRequest struct {
	Buyer             string `json:"buyer,omitempty" validate:"omitempty,max=128"`
	TransactionRef    string `json:"transaction_ref,omitempty" validate:"omitempty,max=255"`
	PaymentMethod     string `json:"payment_method,omitempty" validate:"omitempty,oneof=ledger token card"`
	SignedTransaction string `json:"signed_transaction,omitempty" validate:"omitempty,base64"`
}

type CheckoutRequest struct {
	Buyer string `json:"buyer,omitempty" validate:"omitempty,max=128"`
}

func NewPurchaseHandler(purchaseService *services.PurchaseService, paymentService *services.PaymentService) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseService: purchaseService,
		paymentService:  paymentService,
	}
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

// POST /assets/:id/purchase
func (h *PurchaseHandler) Purchase(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	assetID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req PurchaseRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	buyer, ok := buyerID(c, req.Buyer)
	if !ok {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "buyer"), nil)
		return
	}
	method := models.PaymentMethod(req.PaymentMethod)
	ref := req.TransactionRef

	if ref == "" && req.SignedTransaction != "" {
		signed, err := base64.StdEncoding.DecodeString(req.SignedTransaction)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "signed_transaction"), nil)
			return
		}
		ref, err = h.purchaseService.RelayTransaction(c.Request.Context(), assetID, signed)
		if err != nil {
			utils.ServiceErrorResponse(c, err)
			return
		}
	}

	if ref == "" && method != models.PaymentMethodToken {
		quote, err := h.purchaseService.QuotePurchase(c.Request.Context(), assetID, buyer)
		if err != nil {
			utils.ServiceErrorResponse(c, err)
			return
		}
		utils.SuccessResponse(c, gin.H{
			"quote": quote,
		})
		return
	}

	if buyer == "" {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyPurchaseBuyerRequired), nil)
		return
	}

	result, err := h.purchaseService.ConfirmPurchase(c.Request.Context(), services.ConfirmPurchaseInput{
		AssetID:        assetID,
		BuyerID:        buyer,
		TransactionRef: ref,
		PaymentMethod:  method,
	})
	if err != nil {
		// A freshly relayed transfer is usually not final yet.
		if req.SignedTransaction != "" && errors.Is(err, apperrors.ErrPaymentPending) {
			c.JSON(http.StatusAccepted, utils.APIResponse{
				Success: true,
				Data: gin.H{
					"message":         i18n.T(lang, i18n.KeyPurchasePending),
					"transaction_ref": ref,
				},
			})
			return
		}
		utils.ServiceErrorResponse(c, err)
		return
	}

	if result.AlreadyPurchased {
		utils.SuccessResponse(c, gin.H{
			"message":           i18n.T(lang, i18n.KeyPurchaseAlreadyOwned),
			"purchase":          result.Purchase,
			"already_purchased": true,
		})
		return
	}

	data := gin.H{
		"message":           i18n.T(lang, i18n.KeyPurchaseConfirmed),
		"purchase":          result.Purchase,
		"already_purchased": false,
	}
	if result.ViewingToken != "" {
		data["viewing_token"] = result.ViewingToken
	}
	utils.CreatedResponse(c, data)
}

// POST /assets/:id/checkout
func (h *PurchaseHandler) Checkout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	assetID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CheckoutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	buyer, ok := buyerID(c, req.Buyer)
	if !ok {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "buyer"), nil)
		return
	}
	if buyer == "" {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyPurchaseBuyerRequired), nil)
		return
	}

	asset, err := h.purchaseService.PricedAsset(c.Request.Context(), assetID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	intent, err := h.paymentService.CreatePaymentIntent(c.Request.Context(), asset, services.NormalizeBuyerID(buyer))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"payment_intent": intent,
	})
}

// GET /purchases
func (h *PurchaseHandler) GetPurchases(c *gin.Context) {
	accountID, ok := requireAccountID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	purchases, total, err := h.purchaseService.ListPurchases(c.Request.Context(), accountID.String(), params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(purchases, total, params)
	utils.PaginatedResponse(c, result)
}
