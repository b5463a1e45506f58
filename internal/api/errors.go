package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/httputil"
	"github.com/seatsync/seatsync/internal/metrics"
)

// Error codes returned by the local state API.
const (
	ErrCodeInvalidRequest  = httputil.CodeInvalidRequest
	ErrCodeNotFound        = httputil.CodeNotFound
	ErrCodeInternalError   = httputil.CodeInternal
	ErrCodeConflict        = httputil.CodeConflict
	ErrCodeUnavailable     = httputil.CodeUnavailable
	ErrCodeValidationError = httputil.CodeValidation
	ErrCodeBusy            = httputil.CodeBusy
)

func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// respondInternal logs an unexpected failure under the request's ID and
// answers 500 without leaking the cause.
func respondInternal(c *gin.Context, entry *logrus.Entry, msg string) {
	entry.WithField("request_id", httputil.RequestID(c)).Error(msg)
	respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}
