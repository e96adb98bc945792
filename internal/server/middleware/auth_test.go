package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachememory "github.com/kolwager/kolwager/internal/cache/memory"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthDisabledWhenKeyEmpty(t *testing.T) {
	h := Auth("")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthBearerToken(t *testing.T) {
	h := Auth("sekrit")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthAPIKeyHeader(t *testing.T) {
	h := Auth("sekrit")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	req.Header.Set("X-API-Key", "sekrit")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejections(t *testing.T) {
	h := Auth("sekrit")(okHandler())

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
		req.Header.Set("Authorization", "Basic sekrit")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := cachememory.NewRateLimiter()
	h := RateLimit(limiter, 2, time.Minute)(okHandler())

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("1.2.3.4"))
	assert.Equal(t, http.StatusOK, send("1.2.3.4"))
	assert.Equal(t, http.StatusTooManyRequests, send("1.2.3.4"))

	// Separate client, separate budget.
	assert.Equal(t, http.StatusOK, send("5.6.7.8"))
}

type erroringLimiter struct{}

func (erroringLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, assert.AnError
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := RateLimit(erroringLimiter{}, 1, time.Minute)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", extractClientIP(req))

	req.Header.Set("X-Real-IP", "2.2.2.2")
	assert.Equal(t, "2.2.2.2", extractClientIP(req))

	req.Header.Set("X-Forwarded-For", "3.3.3.3, 4.4.4.4")
	assert.Equal(t, "3.3.3.3", extractClientIP(req))
}
