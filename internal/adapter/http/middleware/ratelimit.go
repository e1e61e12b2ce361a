package middleware

import (
	"strconv"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/ports"
	"github.com/hackload-kz/payment-sub010/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// RateLimit enforces the named token bucket policy. The scope is the
// authenticated team slug when TokenAuth ran earlier in the chain, the client
// IP otherwise; global policies ignore it.
func RateLimit(limiter ports.RateLimiter, metrics ports.MetricsSink, policy string) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := c.ClientIP()
		if team := TeamFromContext(c); team != nil {
			scope = team.Slug
		}

		decision := limiter.TryAcquire(policy, scope, 1)
		if !decision.Allowed {
			metrics.RateLimitDenied(policy)
			c.Header("Retry-After", strconv.FormatInt(retryAfterSeconds(decision.RetryAfter), 10))
			abort(c, apperror.ErrRateLimited())
			return
		}

		c.Next()
	}
}

// retryAfterSeconds rounds up so a client honoring the header never retries
// before a token is available.
func retryAfterSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
