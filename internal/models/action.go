package models

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const (
	maxActionIDLen  = 255
	maxActionURLLen = 2048
)

// QueuedAction is a mutating request recorded while offline (or before
// delivery) and replayed later. It is persisted as-is.
type QueuedAction struct {
	ID         string          `json:"id"`
	URL        string          `json:"url"`
	Method     string          `json:"method"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	Attempt    int             `json:"attempt"`
	LastError  string          `json:"lastError,omitempty"`
}

// Validate checks the fields a replay needs and normalizes the method.
func (a *QueuedAction) Validate() error {
	if len(a.ID) > maxActionIDLen {
		return ErrFieldTooLong("id", maxActionIDLen)
	}

	if a.URL == "" {
		return ErrMissingURL
	}

	if len(a.URL) > maxActionURLLen {
		return ErrFieldTooLong("url", maxActionURLLen)
	}

	if a.Method == "" {
		return ErrMissingMethod
	}

	a.Method = strings.ToUpper(a.Method)
	switch a.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return ErrInvalidValue("method", a.Method)
	}

	if len(a.Payload) > 0 && !json.Valid(a.Payload) {
		return ErrInvalidValue("payload", "non-JSON body")
	}

	return nil
}
