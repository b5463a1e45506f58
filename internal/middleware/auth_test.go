package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/middleware"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestLocalToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		path     string
		header   http.Header
		wantCode int
	}{
		{"valid token", "s3cret", "/test", http.Header{"Authorization": {"Bearer s3cret"}}, http.StatusOK},
		{"lowercase scheme", "s3cret", "/test", http.Header{"Authorization": {"bearer s3cret"}}, http.StatusOK},
		{"missing header", "s3cret", "/test", nil, http.StatusUnauthorized},
		{"invalid token", "s3cret", "/test", http.Header{"Authorization": {"Bearer nope"}}, http.StatusUnauthorized},
		{"no scheme", "s3cret", "/test", http.Header{"Authorization": {"s3cret"}}, http.StatusUnauthorized},
		{"query token on upgrade", "s3cret", "/test?access_token=s3cret", http.Header{"Upgrade": {"websocket"}}, http.StatusOK},
		{"query token without upgrade", "s3cret", "/test?access_token=s3cret", nil, http.StatusUnauthorized},
		{"wrong query token on upgrade", "s3cret", "/test?access_token=x", http.Header{"Upgrade": {"websocket"}}, http.StatusUnauthorized},
		{"disabled", "", "/test", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(middleware.LocalToken(tt.token, quietLogger()))
			r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			for k, v := range tt.header {
				req.Header[k] = v
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("got %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestLocalToken_RejectionTakesTimingFloor(t *testing.T) {
	r := gin.New()
	r.Use(middleware.LocalToken("s3cret", quietLogger()))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	start := time.Now()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("rejection returned after %v, want at least 50ms", elapsed)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc", "abc"},
		{"abc123", ""},
		{"", ""},
		{"Bearer ", ""},
		{"Basic abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}
			if got := middleware.ExtractBearerToken(c); got != tt.want {
				t.Errorf("ExtractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
