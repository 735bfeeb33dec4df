package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/flowforge/ostiumgate/internal/pkg/apperrors"
	"github.com/flowforge/ostiumgate/internal/pkg/metrics"
	"github.com/flowforge/ostiumgate/internal/readiness"
)

// RequireReady holds back mutating routes unless the gate is fully
// ready. Blocked requests never reach the upstream capability.
func RequireReady(gate *readiness.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := gate.RequireReady(); err != nil {
			metrics.MutationsBlocked.Inc()

			msg := "Service is not ready to accept write operations"
			var nre *readiness.NotReadyError
			if errors.As(err, &nre) && nre.Reason != "" {
				msg = msg + ": " + nre.Reason
			}
			appErr := apperrors.New(apperrors.CodeNotReady, msg, err)
			_ = c.Error(appErr)
			c.Abort()
			return
		}
		c.Next()
	}
}

// BlockDegradedReads holds read routes back while the gate is degraded.
// Only applied when readiness.allow_degraded_reads is disabled; the
// default posture keeps reads flowing through partial outages.
func BlockDegradedReads(gate *readiness.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		if state, reason := gate.State(); state == readiness.Degraded {
			appErr := apperrors.New(apperrors.CodeNotReady,
				"Service is degraded and configured to refuse reads: "+reason, nil)
			_ = c.Error(appErr)
			c.Abort()
			return
		}
		c.Next()
	}
}
