// Package middleware gin 中间件
package middleware

import (
	"net/http"

	"github.com/coreux/asset-gateway/api/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter 全局限流器
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter 创建限流器
// rps: 每秒请求数；burst: 突发请求数
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Middleware 返回 gin 中间件
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter.Allow() {
			common.RespondErrorAbort(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}
