package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/flowforge/ostiumgate/internal/pkg/apperrors"
)

// RateLimit applies one token bucket to the whole /v1 surface. The
// gateway fronts a single upstream wallet, so a global limiter is the
// right granularity.
func RateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			appErr := apperrors.New(apperrors.CodeRateLimited, "Too many requests", nil)
			_ = c.Error(appErr)
			c.Abort()
			return
		}
		c.Next()
	}
}
