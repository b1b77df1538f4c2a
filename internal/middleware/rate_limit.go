// internal/middleware/rate_limit.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/javajoker/vidmarket-backend/internal/i18n"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	visitors map[string]*visitor
	mtx      sync.Mutex
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
	}

	// Clean up old visitors every minute
	go rl.cleanupVisitors()

	return rl
}

func (rl *RateLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Minute)
		rl.mtx.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(rl.visitors, ip)
			}
		}
		rl.mtx.Unlock()
	}
}

func (rl *RateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mtx.Lock()
	defer rl.mtx.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(rl.rate, rl.burst)
		rl.visitors[ip] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter := rl.getVisitor(ip)

		if !limiter.Allow() {
			lang := utils.GetLangFromContext(c)
			c.Header("Retry-After", "1")
			utils.ErrorResponse(c, http.StatusTooManyRequests, "RATE_LIMITED", i18n.T(lang, i18n.KeyRateLimited), nil)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RateLimits holds one limiter per class of route.
type RateLimits struct {
	enabled bool
	general *RateLimiter
	auth    *RateLimiter
	upload  *RateLimiter
	stream  *RateLimiter
}

func NewRateLimits(enabled bool) *RateLimits {
	if !enabled {
		return &RateLimits{}
	}
	return &RateLimits{
		enabled: true,
		general: NewRateLimiter(rate.Every(time.Second), 10), // 10 requests per second
		auth:    NewRateLimiter(rate.Every(time.Minute), 5),  // 5 auth requests per minute
		upload:  NewRateLimiter(rate.Every(time.Minute), 10), // 10 uploads per minute
		// Players issue many small range requests while seeking.
		stream: NewRateLimiter(rate.Every(50*time.Millisecond), 60),
	}
}

func (l *RateLimits) middleware(rl *RateLimiter) gin.HandlerFunc {
	if !l.enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return rl.Middleware()
}

func (l *RateLimits) General() gin.HandlerFunc { return l.middleware(l.general) }

func (l *RateLimits) Auth() gin.HandlerFunc { return l.middleware(l.auth) }

func (l *RateLimits) Upload() gin.HandlerFunc { return l.middleware(l.upload) }

func (l *RateLimits) Stream() gin.HandlerFunc { return l.middleware(l.stream) }
