package api

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/httputil"
)

// maxPathIDLen bounds showtime, seat, room and queue IDs taken from the URL.
const maxPathIDLen = 128

// ginLogger logs one line per request. Server errors log at error level,
// client errors at info, and the rest at debug so a polling UI stays quiet.
func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"route":      c.FullPath(),
			"path":       c.Request.URL.Path,
			"status":     status,
			"duration":   time.Since(start).String(),
			"request_id": httputil.RequestID(c),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Info("request rejected")
		default:
			entry.Debug("request")
		}
	}
}

// validatePathID rejects IDs that cannot name a showtime, seat, room or
// queued action: empty, overlong, or containing whitespace or control
// characters.
func validatePathID(name, id string) error {
	if id == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	if len(id) > maxPathIDLen {
		return fmt.Errorf("%s exceeds maximum length of %d", name, maxPathIDLen)
	}
	if strings.IndexFunc(id, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return fmt.Errorf("%s must not contain whitespace or control characters", name)
	}
	return nil
}
