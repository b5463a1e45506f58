// Package httputil holds the JSON error envelope shared by the local state
// API handlers and its middleware.
package httputil

import "github.com/gin-gonic/gin"

// RequestIDKey is the gin context key holding the canonical request ID.
const RequestIDKey = "request_id"

// Error codes. The CLI branches on these, so they are part of the API.
const (
	CodeInvalidRequest  = "invalid_request"
	CodeValidation      = "validation_error"
	CodeUnauthorized    = "unauthorized"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeBusy            = "busy"
	CodePayloadTooLarge = "payload_too_large"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal_error"
)

// ErrorBody is the body of every error response. It has the same shape as
// client.APIError so one decoder serves the booking API and the local one.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// RequestID returns the request ID assigned by the RequestID middleware, or
// "" outside of it.
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// RespondError writes an ErrorBody and aborts the handler chain.
func RespondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: RequestID(c),
	})
}
