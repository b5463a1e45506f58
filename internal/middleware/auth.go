// Package middleware provides HTTP middleware for the local state API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/httputil"
)

// authTimingFloor is the minimum response time for rejected requests.
const authTimingFloor = 50 * time.Millisecond

// TokenQueryParam carries the token on websocket upgrades, since browsers
// cannot set headers on them.
const TokenQueryParam = "access_token"

// LocalToken requires every request to present token, as a Bearer
// credential or, for websocket upgrades only, as the access_token query
// parameter. An empty token disables the check.
func LocalToken(token string, log *logrus.Logger) gin.HandlerFunc {
	want := []byte(token)

	return func(c *gin.Context) {
		if len(want) == 0 {
			c.Next()
			return
		}

		start := time.Now()
		got := presentedToken(c)

		switch {
		case got == "":
			reject(c, start, "missing or invalid authorization header")
		case subtle.ConstantTimeCompare([]byte(got), want) != 1:
			logAuthFailure(log, c, got)
			reject(c, start, "invalid local api token")
		default:
			c.Next()
		}
	}
}

func presentedToken(c *gin.Context) string {
	if t := ExtractBearerToken(c); t != "" {
		return t
	}
	if isWebSocketUpgrade(c.Request) {
		return c.Query(TokenQueryParam)
	}
	return ""
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// reject answers 401 no sooner than authTimingFloor after start.
func reject(c *gin.Context, start time.Time, msg string) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
	httputil.RespondError(c, http.StatusUnauthorized, httputil.CodeUnauthorized, msg)
}

// ExtractBearerToken returns the credential of a Bearer Authorization
// header. The scheme is matched case-insensitively.
func ExtractBearerToken(c *gin.Context) string {
	scheme, cred, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(cred)
}

func logAuthFailure(log *logrus.Logger, c *gin.Context, token string) {
	prefix := token
	if len(prefix) > 4 {
		prefix = prefix[:4] + "..."
	}
	log.WithFields(logrus.Fields{
		"client_ip":    c.ClientIP(),
		"method":       c.Request.Method,
		"route":        c.FullPath(),
		"user_agent":   c.Request.UserAgent(),
		"request_id":   httputil.RequestID(c),
		"token_prefix": prefix,
	}).Warn("local api authentication failed")
}
