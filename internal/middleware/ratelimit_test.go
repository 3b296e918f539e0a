package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRateLimiterHandle_BlocksOverBudget(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	limiter := newRateLimiter(2)
	limiter.now = func() time.Time { return now }

	results := make([]bool, 0, 3)
	for i := 0; i < 3; i++ {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/api/v1/qa/ask", nil)
		limiter.handle(c)
		results = append(results, c.IsAborted())
	}
	require.Equal(t, []bool{false, false, true}, results)

	now = now.Add(time.Minute)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/qa/ask", nil)
	limiter.handle(c)
	require.False(t, c.IsAborted())
}

func TestRateLimiterCleanupExpiredLocked_RemovesIdleVisitors(t *testing.T) {
	base := time.Now()
	limiter := newRateLimiter(10)
	limiter.visitors["idle"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: base.Add(-10 * time.Minute)}
	limiter.visitors["active"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: base.Add(-2 * time.Second)}

	limiter.mu.Lock()
	limiter.cleanupExpiredLocked(base)
	limiter.mu.Unlock()

	require.NotContains(t, limiter.visitors, "idle")
	require.Contains(t, limiter.visitors, "active")
	require.False(t, limiter.lastSweep.IsZero())
}
