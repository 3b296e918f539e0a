package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xxxsen/legalrag/internal/pkg/errcode"
	"github.com/xxxsen/legalrag/internal/pkg/response"
)

const defaultSweepInterval = time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per (client ip, route).
type rateLimiter struct {
	mu            sync.Mutex
	limit         rate.Limit
	burst         int
	idle          time.Duration
	visitors      map[string]*visitor
	sweepInterval time.Duration
	lastSweep     time.Time
	now           func() time.Time
}

// RateLimit allows perMinute requests per client and route. Non-positive
// disables limiting.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return newRateLimiter(perMinute).handle
}

func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		limit:         rate.Every(time.Minute / time.Duration(perMinute)),
		burst:         perMinute,
		idle:          2 * time.Minute,
		visitors:      make(map[string]*visitor),
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
	}
}

func (l *rateLimiter) handle(c *gin.Context) {
	ip := c.ClientIP()
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	key := strings.Join([]string{ip, path}, "|")

	now := l.now()
	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.sweepInterval {
		l.cleanupExpiredLocked(now)
	}
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	allowed := v.limiter.AllowN(now, 1)
	l.mu.Unlock()

	if !allowed {
		logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
			zap.String("ip", ip),
			zap.String("path", path),
		)
		response.Error(c, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
		c.Abort()
		return
	}
	c.Next()
}

func (l *rateLimiter) cleanupExpiredLocked(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, key)
		}
	}
	l.lastSweep = now
}
