package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewRateLimiter creates a Gin middleware that allows requests per period
// and client IP, backed by an in-memory store.
func NewRateLimiter(requests int64, period time.Duration) (gin.HandlerFunc, error) {
	if requests <= 0 {
		return nil, errors.New("rate limit requests must be positive")
	}
	if period <= 0 {
		return nil, errors.New("rate limit period must be positive")
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  requests,
	}

	store := memory.NewStore()
	instance := limiter.New(store, rate)

	middleware := mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
				"code":  "RATE_LIMITED",
			})
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Rate limiter failure: " + err.Error(),
				"code":  "RATE_LIMITER_FAILED",
			})
		}),
	)
	return middleware, nil
}
