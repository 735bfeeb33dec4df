package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowforge/ostiumgate/internal/pkg/metrics"
)

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.LatencyBucket.WithLabelValues(c.FullPath()).Observe(time.Since(start).Seconds())
	}
}
