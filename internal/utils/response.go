// internal/utils/response.go
package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/i18n"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
	Details   interface{} `json:"details,omitempty"`
}

func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func SuccessResponseWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func BadRequestResponse(c *gin.Context, message string, details interface{}) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyValidationInvalid, "request")
	}
	ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyAuthRequired)
	}
	ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func ValidationErrorResponse(c *gin.Context, errors []ValidationError) {
	lang := GetLangFromContext(c)
	message := i18n.T(lang, i18n.KeyValidationInvalid, "input")
	ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", message, errors)
}

func PaginatedResponse(c *gin.Context, result PaginationResult) {
	SetPaginationHeaders(c, result)
	SuccessResponseWithMeta(c, result.Data, gin.H{
		"pagination": gin.H{
			"page":        result.Page,
			"limit":       result.Limit,
			"total":       result.Total,
			"total_pages": result.TotalPages,
		},
	})
}

func GetLangFromContext(c *gin.Context) string {
	if lang, exists := c.Get("lang"); exists {
		if langStr, ok := lang.(string); ok {
			return langStr
		}
	}
	return "en"
}

// GetViewerFromContext returns the buyer and asset named by a viewing token.
func GetViewerFromContext(c *gin.Context) (buyerID, assetID string, ok bool) {
	buyerID = c.GetString("viewer_buyer_id")
	assetID = c.GetString("viewer_asset_id")
	return buyerID, assetID, buyerID != "" && assetID != ""
}

func GetAccountIDFromContext(c *gin.Context) (string, bool) {
	if accountID, exists := c.Get("account_id"); exists {
		if accountIDStr, ok := accountID.(string); ok && accountIDStr != "" {
			return accountIDStr, true
		}
	}
	return "", false
}

var messageKeys = map[apperrors.Kind]string{
	apperrors.KindNotFound:            i18n.KeyErrorNotFound,
	apperrors.KindAssetNotFound:       i18n.KeyAssetNotFound,
	apperrors.KindAssetNotForSale:     i18n.KeyAssetNotForSale,
	apperrors.KindAccessDenied:        i18n.KeyStreamAccessDenied,
	apperrors.KindUnauthorized:        i18n.KeyAuthRequired,
	apperrors.KindForbidden:           i18n.KeyErrorForbidden,
	apperrors.KindConflict:            i18n.KeyErrorConflict,
	apperrors.KindVerificationFailed:  i18n.KeyPurchaseVerificationFailed,
	apperrors.KindPaymentPending:      i18n.KeyPurchasePending,
	apperrors.KindLedgerUnavailable:   i18n.KeyPurchaseLedgerUnavailable,
	apperrors.KindStorageUploadFailed: i18n.KeyStorageUploadFailed,
	apperrors.KindRegistrationFailed:  i18n.KeyStorageRegistrationFailed,
	apperrors.KindContentUnavailable:  i18n.KeyStreamContentUnavailable,
	apperrors.KindRangeNotSatisfiable: i18n.KeyStreamRangeInvalid,
	apperrors.KindInternal:            i18n.KeyErrorInternal,
}

// ServiceErrorResponse renders a service error with its stable code, the
// matching status and a localized message. Validation errors keep their
// own message since it carries the offending field.
func ServiceErrorResponse(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	lang := GetLangFromContext(c)

	message := appErr.Message
	if key, ok := messageKeys[appErr.Kind]; ok && i18n.Has(lang, key) {
		message = i18n.T(lang, key)
	}

	if appErr.Kind == apperrors.KindInternal {
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Unhandled service error")
	}

	var details interface{}
	if len(appErr.Details) > 0 {
		details = appErr.Details
	}

	c.JSON(appErr.HTTPStatus(), APIResponse{
		Success: false,
		Error: &APIError{
			Code:      string(appErr.Kind),
			Message:   message,
			Retryable: appErr.Kind.Retryable(),
			Details:   details,
		},
	})
}
