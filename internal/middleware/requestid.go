package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/httputil"
)

const (
	// RequestIDKey is the gin context key for the request ID.
	RequestIDKey = httputil.RequestIDKey

	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"
)

// RequestID assigns every request a canonical UUID and echoes it back.
//
// The CLI tags its calls with a UUID of its own so an error it prints can be
// found in the session log; such an ID is adopted as-is. Anything that is not
// a UUID is kept only as the "client_request_id" log field.
func RequestID(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetHeader(RequestIDHeader)

		parsed, err := uuid.Parse(clientID)
		id := parsed.String()
		if err != nil {
			id = uuid.NewString()
			if clientID != "" {
				log.WithFields(logrus.Fields{
					"request_id":        id,
					"client_request_id": clientID,
				}).Debug("replaced malformed client request id")
				c.Set("client_request_id", clientID)
			}
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
