package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"

	"github.com/fatflowers/matchday/pkg/logctx"
	"github.com/fatflowers/matchday/pkg/response"
)

// Limiter is the subset of *redis_rate.Limiter used here.
type Limiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RateLimit throttles requests per key. Limiter errors let the request
// through; a rate limiter outage must not take the API down.
func RateLimit(limiter Limiter, prefix string, limit redis_rate.Limit, keyFn func(*gin.Context) string, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" || limiter == nil {
			c.Next()
			return
		}
		res, err := limiter.Allow(c.Request.Context(), "ratelimit:"+prefix+":"+key, limit)
		if err != nil {
			logctx.FromGin(c, base).Warnf("rate limiter unavailable: %v", err)
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if res.Allowed == 0 {
			retry := int(res.RetryAfter/time.Second) + 1
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.RateLimited())
			return
		}
		c.Next()
	}
}

// ByIP keys on the client address.
func ByIP(c *gin.Context) string { return "ip:" + c.ClientIP() }

// ByUserOrIP keys on the authenticated user and falls back to the client address.
func ByUserOrIP(c *gin.Context) string {
	if id := IdentityFrom(c); id != nil {
		return "user:" + id.UserID
	}
	return ByIP(c)
}
