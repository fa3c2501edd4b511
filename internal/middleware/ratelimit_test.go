package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/traveltweets/internal/util"
)

func newLimitedRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handler)
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestRateLimiter(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(RateLimitConfig{
		Scope:   "test",
		Limit:   3,
		Window:  time.Second,
		KeyFunc: func(c *gin.Context) string { return c.ClientIP() },
	}))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "4th request should be rate limited")
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var body util.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body.Code)

	time.Sleep(time.Second + 100*time.Millisecond)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code, "Request after window should succeed")
}

func TestRateLimiterDifferentClients(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(RateLimitConfig{
		Scope:  "test",
		Limit:  2,
		Window: time.Minute,
		KeyFunc: func(c *gin.Context) string {
			return c.GetHeader("X-Client-ID")
		},
	}))

	send := func(client string) int {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Client-ID", client)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("client-a"))
	assert.Equal(t, http.StatusOK, send("client-a"))
	assert.Equal(t, http.StatusTooManyRequests, send("client-a"), "Client A should be rate limited")
	assert.Equal(t, http.StatusOK, send("client-b"), "Client B should not be rate limited")
}

func TestRedisRateLimitWithoutRedisFallsBackToMemory(t *testing.T) {
	router := newLimitedRouter(RedisRateLimitMiddleware(RateLimitConfig{
		Scope:  "test",
		Limit:  1,
		Window: time.Minute,
	}, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestClientKeyPrefersUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Request.RemoteAddr = "203.0.113.7:1234"

	assert.Equal(t, "ip:203.0.113.7", ClientKey(c))

	c.Set(util.ContextUserIDKey, "u1")
	assert.Equal(t, "user:u1", ClientKey(c))
}

func TestDefaultConfigs(t *testing.T) {
	global := DefaultRateLimitConfig(0)
	assert.Equal(t, 300, global.Limit)
	assert.Equal(t, time.Minute, global.Window)
	assert.NotNil(t, global.KeyFunc)

	assert.Equal(t, 10, AuthRateLimitConfig().Limit)
	assert.Equal(t, 20, UploadRateLimitConfig().Limit)
	assert.Equal(t, 10, CaptionRateLimitConfig().Limit)
}
