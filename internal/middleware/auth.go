// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/vidmarket-backend/internal/i18n"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

// tokenFromRequest reads "Bearer <token>" and, for media elements that
// cannot set headers, the token query parameter.
func tokenFromRequest(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, true
		}
		return "", false
	}

	// Extract token from "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", true
	}
	return parts[1], true
}

func setAccount(c *gin.Context, claims *utils.JWTClaims) {
	c.Set("account_id", claims.AccountID)
	c.Set("handle", claims.Handle)
	c.Set("is_verified_creator", claims.IsVerifiedCreator)
}

func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		token, present := tokenFromRequest(c)
		if !present {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}
		if token == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(token)
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthTokenExpired))
			c.Abort()
			return
		}

		setAccount(c, claims)
		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid session or viewing token
// is present and otherwise lets the request through anonymously.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := tokenFromRequest(c)
		if token == "" {
			c.Next()
			return
		}

		if claims, err := utils.ValidateJWT(token); err == nil {
			setAccount(c, claims)
		} else if viewing, err := utils.ValidateViewingToken(token); err == nil {
			c.Set("viewer_buyer_id", viewing.Subject)
			c.Set("viewer_asset_id", viewing.AssetID)
		}
		c.Next()
	}
}
