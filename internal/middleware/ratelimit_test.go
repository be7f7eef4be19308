package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_AllowsBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMin: 60, BurstSize: 2})
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("Expected burst requests to be allowed")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("Expected request beyond burst to be blocked")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("Expected other clients to have their own bucket")
	}

	now = now.Add(time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Error("Expected a token to be refilled after one second")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{CleanupInterval: time.Minute})
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(2 * time.Minute)
	rl.Allow("fresh")

	if removed := rl.Cleanup(); removed != 1 {
		t.Errorf("Expected 1 visitor removed, got %d", removed)
	}
	if len(rl.visitors) != 1 {
		t.Errorf("Expected 1 visitor left, got %d", len(rl.visitors))
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(RateLimitConfig{RequestsPerMin: 1, BurstSize: 1})
	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK {
		t.Errorf("Expected first request to pass, got %d", codes[0])
	}
	if codes[1] != http.StatusTooManyRequests {
		t.Errorf("Expected second request to be limited, got %d", codes[1])
	}
}
