package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter 按客户端 IP 限流
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	r        rate.Limit
	b        int
	idle     time.Duration
}

// NewIPRateLimiter r 为每秒请求数，b 为突发容量
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		r:        r,
		b:        b,
		idle:     10 * time.Minute,
	}
}

// GetLimiter 获取指定 IP 的限流器，顺带清理长时间未访问的 IP
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := time.Now()
	v, ok := i.visitors[ip]
	if !ok {
		if len(i.visitors) > 10000 {
			for k, old := range i.visitors {
				if now.Sub(old.lastSeen) > i.idle {
					delete(i.visitors, k)
				}
			}
		}
		v = &visitor{limiter: rate.NewLimiter(i.r, i.b)}
		i.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// RateLimit 限流中间件
func RateLimit(l *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.GetLimiter(c.ClientIP()).Allow() {
			abort(c, http.StatusTooManyRequests, "请求过于频繁")
			return
		}
		c.Next()
	}
}
