// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("lang", parseLanguage(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// parseLanguage maps the first Accept-Language entry onto a loaded locale,
// e.g. "zh-TW,zh;q=0.9,en;q=0.8" becomes zh_TW.
func parseLanguage(header string) string {
	if header == "" {
		return "en"
	}

	first := strings.TrimSpace(strings.Split(strings.Split(header, ",")[0], ";")[0])
	switch strings.ToLower(first) {
	case "zh-tw", "zh-hant", "zh_tw", "zh-hk":
		return "zh_TW"
	default:
		return "en"
	}
}
