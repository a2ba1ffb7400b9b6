package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/interfaces/http/dto"
)

// WebhookSecretHeader carries the shared secret on inbound webhook calls.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookAuth checks the shared secret on every request in the group.
// An empty configured secret disables the check; that is only acceptable
// in development and the caller is expected to log a warning.
func WebhookAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(
				dto.ErrCodeUnauthorized,
				"invalid webhook secret",
			))
			return
		}

		c.Next()
	}
}
