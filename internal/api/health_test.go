package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/seatsync/seatsync/internal/api"
	"github.com/seatsync/seatsync/internal/session"
	"github.com/seatsync/seatsync/internal/ws"
)

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

func TestLiveness_ReturnsOK(t *testing.T) {
	t.Parallel()

	status := &mockStatus{status: session.Status{State: ws.StateConnected}}
	h := api.NewHealthHandler(status, nil, testLogger(), "test-v1")

	r := gin.New()
	r.GET("/health", h.Liveness)

	w := doRequest(r, http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", body["status"])
	}
	if body["version"] != "test-v1" {
		t.Errorf("expected version 'test-v1', got %v", body["version"])
	}
	if body["connection"] != string(ws.StateConnected) {
		t.Errorf("expected connection %q, got %v", ws.StateConnected, body["connection"])
	}
	if body["storage"] != "local" {
		t.Errorf("expected storage 'local', got %v", body["storage"])
	}
}

func TestLiveness_ReportsStorage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"healthy", nil, "connected"},
		{"down", errors.New("dial tcp: refused"), "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := api.NewHealthHandler(&mockStatus{}, fakeChecker{err: tt.err}, testLogger(), "v")
			r := gin.New()
			r.GET("/health", h.Liveness)

			w := doRequest(r, http.MethodGet, "/health", "")
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}

			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body["storage"] != tt.want {
				t.Errorf("storage = %v, want %q", body["storage"], tt.want)
			}
		})
	}
}

func TestStatus_ReturnsSessionSummary(t *testing.T) {
	t.Parallel()

	status := &mockStatus{status: session.Status{
		State:  ws.StateReconnecting,
		UserID: "u-1",
		Queued: 2,
		Rooms:  []string{"showtime:s1"},
	}}
	h := api.NewHealthHandler(status, nil, testLogger(), "v")

	r := gin.New()
	r.GET("/status", h.Status)

	w := doRequest(r, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var got session.Status
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.State != ws.StateReconnecting || got.UserID != "u-1" || got.Queued != 2 {
		t.Errorf("unexpected status %+v", got)
	}
	if len(got.Rooms) != 1 || got.Rooms[0] != "showtime:s1" {
		t.Errorf("rooms = %v", got.Rooms)
	}
}
