package middleware

import (
	"net/http"

	"credit-ledger-bridge/pkg/apperror"
	"credit-ledger-bridge/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize rejects requests that declare a body above maxBytes and caps
// the rest, so a chunked body fails in binding once it crosses the limit.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, apperror.ErrPayloadTooLarge(maxBytes))
			c.Abort()
			return
		}
		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
