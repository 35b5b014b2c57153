package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIssueRateLimiter_EnforcesDailyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	router := gin.New()
	router.POST("/api/issues",
		func(c *gin.Context) { c.Set(userIDKey, c.GetHeader("X-User")) },
		IssueRateLimiter(client, "issue_limit", 2, zap.NewNop()),
		func(c *gin.Context) { c.Status(http.StatusCreated) },
	)

	post := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/issues", nil)
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, post("jane"))
	assert.Equal(t, http.StatusCreated, post("jane"))
	assert.Equal(t, http.StatusTooManyRequests, post("jane"))
	assert.Equal(t, http.StatusCreated, post("bob"))
	assert.Equal(t, http.StatusUnauthorized, post(""))

	ttl := mr.TTL("issue_limit:jane")
	assert.True(t, ttl > 23*time.Hour && ttl <= 24*time.Hour, "ttl %v", ttl)

	mr.FastForward(25 * time.Hour)
	assert.Equal(t, http.StatusCreated, post("jane"))
}

func TestIssueRateLimiter_OnlyCreatedReportsCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	router := gin.New()
	router.POST("/api/issues",
		func(c *gin.Context) { c.Set(userIDKey, "jane") },
		IssueRateLimiter(client, "issue_limit", 2, zap.NewNop()),
		func(c *gin.Context) {
			if c.Query("verified") != "true" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Please confirm you are human before submitting"})
				return
			}
			c.Status(http.StatusCreated)
		},
	)

	post := func(verified string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/issues?verified="+verified, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusBadRequest, post("false"))
	}
	assert.Equal(t, http.StatusCreated, post("true"))
	assert.Equal(t, http.StatusCreated, post("true"))
	assert.Equal(t, http.StatusTooManyRequests, post("true"))
	assert.Equal(t, http.StatusTooManyRequests, post("true"))

	count, err := client.Get(context.Background(), "issue_limit:jane").Int()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIssueRateLimiter_RedisDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	router := gin.New()
	router.POST("/api/issues",
		func(c *gin.Context) { c.Set(userIDKey, "jane") },
		IssueRateLimiter(client, "issue_limit", 2, zap.NewNop()),
		func(c *gin.Context) { c.Status(http.StatusCreated) },
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/issues", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLoginRateLimiter_PerIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewLoginRateLimiter(2, zap.NewNop())
	defer rl.Stop()

	router := gin.New()
	router.POST("/api/auth/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	login := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, login("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, login("10.0.0.1").Code)
	rec := login("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, login("10.0.0.2").Code)
	require.Equal(t, 2, rl.Clients())

	rl.cleanup(time.Now().Add(time.Hour))
	assert.Equal(t, 0, rl.Clients())
}
