package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowforge/ostiumgate/internal/readiness"
)

const serviceName = "ostiumgate"

// Health is pure liveness: it answers as long as the process serves
// HTTP, regardless of gate state.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready reports the gate state. Ready and degraded answer 200 so load
// balancers keep routing reads; not_ready answers 503.
func Ready(gate *readiness.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, reason := gate.State()
		status := http.StatusOK
		if state == readiness.NotReady {
			status = http.StatusServiceUnavailable
		}
		body := gin.H{
			"status":  state.String(),
			"service": serviceName,
		}
		if reason != "" {
			body["reason"] = reason
		}
		c.JSON(status, body)
	}
}
