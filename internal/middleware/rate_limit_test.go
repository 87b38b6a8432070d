package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/pageza/alchemorsel-v2/search/internal/testhelpers"
)

func rateLimitedRouter(rl *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/search", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRateLimiterFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	router := rateLimitedRouter(NewSearchRateLimiter(client, 1))
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/search", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "rate limit check failed", rr.Header().Get("X-RateLimit-Error"))
	}
}

func TestRateLimiterEnforcesLimit(t *testing.T) {
	client := testhelpers.SetupTestRedis(t)
	rl := NewSearchRateLimiter(client, 2)
	// pin the window so the test cannot straddle a minute boundary
	fixed := time.Now().Truncate(time.Minute).Add(10 * time.Second)
	rl.now = func() time.Time { return fixed }
	router := rateLimitedRouter(rl)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/search", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// another client has its own window
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Remaining"))
}
