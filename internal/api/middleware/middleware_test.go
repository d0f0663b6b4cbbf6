package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.POST("/upload", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func post(r *gin.Engine, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(2, time.Hour))

	assert.Equal(t, http.StatusNoContent, post(r, "a").Code)
	assert.Equal(t, http.StatusNoContent, post(r, "b").Code)

	rec := post(r, "c")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func TestDeduplicator(t *testing.T) {
	d := NewDeduplicator(time.Second)
	now := time.Date(2024, 3, 26, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	r := newEngine(d.Handler())

	assert.Equal(t, http.StatusNoContent, post(r, "same").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(r, "same").Code)
	assert.Equal(t, http.StatusNoContent, post(r, "other").Code)

	now = now.Add(2 * time.Second)
	assert.Equal(t, http.StatusNoContent, post(r, "same").Code)
}

func TestDeduplicatorDisabled(t *testing.T) {
	r := newEngine(NewDeduplicator(0).Handler())
	assert.Equal(t, http.StatusNoContent, post(r, "same").Code)
	assert.Equal(t, http.StatusNoContent, post(r, "same").Code)
}

func TestBodySizeLimit(t *testing.T) {
	r := newEngine(BodySizeLimit(4))

	assert.Equal(t, http.StatusNoContent, post(r, "abc").Code)

	rec := post(r, "too large")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte("PAYLOAD_TOO_LARGE")))
}

func TestRateLimiterPrunesIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Date(2024, 3, 26, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.False(t, rl.Allow("a"))
	assert.Equal(t, 2, rl.Clients())

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("c"))
	assert.Equal(t, 1, rl.Clients())
	assert.True(t, rl.Allow("a"))
}
