// internal/handlers/helpers.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/vidmarket-backend/internal/i18n"
	"github.com/javajoker/vidmarket-backend/internal/ledger"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

// BuyerAddressHeader names the paying wallet of an anonymous purchase. It
// never grants access to content.
const BuyerAddressHeader = "X-Buyer-Address"

func requireAccountID(c *gin.Context) (uuid.UUID, bool) {
	accountIDStr, exists := utils.GetAccountIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	accountID, err := uuid.Parse(accountIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyAuthInvalidToken))
		return uuid.Nil, false
	}
	return accountID, true
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, name), nil)
		return uuid.Nil, false
	}
	return id, true
}

// buyerID is the authenticated account, else a ledger address from the
// header or the request body. Account ids are only taken from a session, so
// ok is false when an anonymous caller names anything but an address.
func buyerID(c *gin.Context, fallback string) (string, bool) {
	if accountID, exists := utils.GetAccountIDFromContext(c); exists {
		return accountID, true
	}
	buyer := strings.TrimSpace(c.GetHeader(BuyerAddressHeader))
	if buyer == "" {
		buyer = strings.TrimSpace(fallback)
	}
	if buyer != "" && !ledger.LooksLikeAddress(buyer) {
		return "", false
	}
	return buyer, true
}

// viewerID is who is asking to watch assetID: the signed in account, or the
// buyer named by a viewing token issued for that asset.
func viewerID(c *gin.Context, assetID uuid.UUID) string {
	if accountID, exists := utils.GetAccountIDFromContext(c); exists {
		return accountID
	}
	if buyer, tokenAsset, ok := utils.GetViewerFromContext(c); ok && tokenAsset == assetID.String() {
		return buyer
	}
	return ""
}
