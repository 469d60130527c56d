package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestToken_RoundTrip 签发的 Token 可以解析出用户名
func TestToken_RoundTrip(t *testing.T) {
	InitAuth("test-secret", time.Hour)

	token, err := GenerateToken("alice")
	require.NoError(t, err)

	username, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	InitAuth("other-secret", time.Hour)
	_, err = ValidateToken(token)
	assert.Error(t, err, "不同密钥签发的 Token 无效")

	_, err = ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestToken_Expired(t *testing.T) {
	InitAuth("test-secret", time.Hour)

	claims := Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func newAuthRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(), func(c *gin.Context) {
		username, _ := GetUsername(c)
		c.String(http.StatusOK, username)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	InitAuth("test-secret", time.Hour)
	r := newAuthRouter()

	token, err := GenerateToken("bob")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + token, http.StatusUnauthorized},
		{"bad token", "Bearer garbage", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "bob", w.Body.String())
			}
		})
	}
}

// TestRateLimiter 超过次数返回 429
func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.POST("/login", RateLimiter(3, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"too many requests"}`, w.Body.String())
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := gin.New()
	r.POST("/login", RateLimiter(0, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

// TestErrorHandlerMiddleware panic 和未处理的错误都返回 500
func TestErrorHandlerMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandlerMiddleware(zap.NewNop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/error", func(c *gin.Context) { _ = c.Error(errors.New("db down")) })

	for _, path := range []string{"/panic", "/error"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
	}
}
