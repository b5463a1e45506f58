package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seatsync/seatsync/internal/httputil"
)

// MaxBodySize caps request bodies at maxBytes. A declared Content-Length
// over the cap is refused up front with 413; undeclared bodies are cut off
// while the handler reads them, which fails its JSON binding.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxBytes {
			httputil.RespondError(c, http.StatusRequestEntityTooLarge, httputil.CodePayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", maxBytes))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
