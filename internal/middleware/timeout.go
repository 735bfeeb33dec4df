package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Timeout bounds the whole request with one deadline. Upstream clients
// inherit it through the request context, so a hung RPC surfaces as
// context.DeadlineExceeded and classifies as UPSTREAM_TIMEOUT instead
// of holding the connection (and the tx mutex) open indefinitely.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
