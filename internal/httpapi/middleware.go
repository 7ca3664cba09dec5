package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"outbound-caller/internal/metrics"
	"outbound-caller/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SlotLimiter is a distributed counting semaphore (see utils.ConcurrencyCap).
type SlotLimiter interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// ActiveCallsKey is the slot key shared by every process dialing on trunkID.
func ActiveCallsKey(trunkID string) string {
	return "calls:active:" + trunkID
}

// ConcurrencyLimit holds one slot under key for the life of the request.
// When the limiter itself fails the request goes through.
func ConcurrencyLimit(l SlotLimiter, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ok, err := l.Acquire(ctx, key)
		if err != nil {
			logger.From(ctx).Warn("concurrency slot acquire failed", "key", key, "err", err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "too many concurrent calls"})
			return
		}
		defer func() {
			if err := l.Release(context.WithoutCancel(ctx), key); err != nil {
				logger.From(ctx).Warn("concurrency slot release failed", "key", key, "err", err)
			}
		}()
		c.Next()
	}
}

// Metrics records per-route request counts and latency. Unmatched routes share
// one label to keep cardinality bounded.
func Metrics(m *metrics.HTTP) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
