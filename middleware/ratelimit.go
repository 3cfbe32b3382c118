package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CheckRateLimit counts one hit for id against resource and reports whether
// it is still within limit for the current window. The counter and its
// expiry are set in one transaction, so a counter never outlives its window.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rdb == nil {
		return false, errors.New("redis client is nil")
	}
	key := fmt.Sprintf("rl:%s:%s", resource, id)

	var incr *redis.IntCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(limit), nil
}

// Limiter is a fixed-window limit on one resource. Shared by the HTTP
// middleware and the chat socket so both draw on the same budget.
type Limiter struct {
	rdb      *redis.Client
	limit    int
	window   time.Duration
	resource string
}

func NewLimiter(rdb *redis.Client, limit int, window time.Duration, resource string) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, window: window, resource: resource}
}

// Allow counts one hit for id. When Redis is unavailable it allows.
func (l *Limiter) Allow(ctx context.Context, id string) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	allowed, err := CheckRateLimit(ctx, l.rdb, l.resource, id, l.limit, l.window)
	if err != nil {
		zap.L().Warn("rate limit unavailable", zap.String("resource", l.resource), zap.Error(err))
		return true
	}
	return allowed
}

// Handler limits requests keyed by authenticated user or client IP.
func (l *Limiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.Request.Context(), ClientKey(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": TooManyRequests})
			return
		}
		c.Next()
	}
}

const TooManyRequests = "Too many requests, slow down."

// ClientKey identifies the caller for rate limiting.
func ClientKey(c *gin.Context) string {
	if uid := c.GetString("user_id"); uid != "" {
		return UserKey(uid)
	}
	return "ip:" + c.ClientIP()
}

func UserKey(userID string) string { return "user:" + userID }

// RateLimit allows limit requests per window on resource.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, resource string) gin.HandlerFunc {
	return NewLimiter(rdb, limit, window, resource).Handler()
}
