package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fee-engine/internal/adapter/http/middleware"
	redisStore "fee-engine/internal/adapter/storage/redis"
	"fee-engine/internal/core/ports/mocks"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func setupRateLimitRouter(t *testing.T, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}
	handlers := append(pre, middleware.RateLimiter(redisStore.NewRateLimitStore(client), "test", rule, zerolog.Nop()),
		func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	r := gin.New()
	r.GET("/test", handlers...)
	return r
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	router := setupRateLimitRouter(t)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, 200, w.Code, "request %d should succeed", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	router := setupRateLimitRouter(t)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, 200, w.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimiter_KeysByBusiness(t *testing.T) {
	var current uuid.UUID
	router := setupRateLimitRouter(t, func(c *gin.Context) {
		c.Set(middleware.CtxBusinessID, current)
		c.Next()
	})

	current = uuid.New()
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, 200, w.Code)
	}

	current = uuid.New()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, 200, w.Code, "second business has its own counter")
}

func TestRateLimiter_DegradedAllows(t *testing.T) {
	ctrl := gomock.NewController(t)
	limiter := mocks.NewMockRateLimiter(ctrl)
	limiter.EXPECT().Allow(gomock.Any(), gomock.Any(), int64(3), time.Minute).Return(nil, assert.AnError)

	r := gin.New()
	r.GET("/test", middleware.RateLimiter(limiter, "test", middleware.RateLimitRule{Limit: 3, Window: time.Minute}, zerolog.Nop()),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDefaultRateLimitRules(t *testing.T) {
	rules := middleware.DefaultRateLimitRules()
	assert.Equal(t, int64(30), rules["payouts"].Limit)
	assert.Equal(t, int64(10), rules["auth_token"].Limit)
	assert.Equal(t, int64(5), rules["auth_register"].Limit)
	assert.Equal(t, time.Hour, rules["auth_register"].Window)
	assert.Equal(t, int64(60), rules["charges"].Limit)
}
