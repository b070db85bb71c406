package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user"))
	})
	return r
}

func get(r http.Handler, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuth(t *testing.T) {
	const secret = "field-test-secret"
	r := newRouter(Auth(secret))
	valid := jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"missing", "/ping", "", http.StatusUnauthorized},
		{"garbage", "/ping", "Bearer nope", http.StatusUnauthorized},
		{"valid header", "/ping", "Bearer " + sign(t, secret, jwt.SigningMethodHS256, valid), http.StatusOK},
		{"valid query", "/ping?token=" + sign(t, secret, jwt.SigningMethodHS256, valid), "", http.StatusOK},
		{"wrong secret", "/ping", "Bearer " + sign(t, "other", jwt.SigningMethodHS256, valid), http.StatusUnauthorized},
		{"wrong alg", "/ping", "Bearer " + sign(t, secret, jwt.SigningMethodHS512, valid), http.StatusUnauthorized},
		{"expired", "/ping", "Bearer " + sign(t, secret, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "operator",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}), http.StatusUnauthorized},
		{"no expiry", "/ping", "Bearer " + sign(t, secret, jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "operator"}), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Authorization", tt.header)
			}
			w := get(r, tt.target, h)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "operator", w.Body.String())
			}
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	w := get(newRouter(Auth("")), "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	defer limiter.Close()

	now := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	r := newRouter(RateLimit(limiter))
	assert.Equal(t, http.StatusOK, get(r, "/ping", nil).Code)
	assert.Equal(t, http.StatusOK, get(r, "/ping", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/ping", nil).Code)

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, get(r, "/ping", nil).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	limiter := NewRateLimiter(0, time.Minute)
	defer limiter.Close()

	r := newRouter(RateLimit(limiter))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(r, "/ping", nil).Code)
	}
}

func TestLoggerSetsRequestID(t *testing.T) {
	r := newRouter(Logger("/ping"))

	w := get(r, "/ping", nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	h := http.Header{}
	h.Set(RequestIDHeader, "abc-123")
	w = get(r, "/ping", h)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
