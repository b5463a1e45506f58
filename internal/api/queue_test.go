package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/seatsync/seatsync/internal/api"
	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/offline"
)

func newQueueRouter(svc *mockQueue) *gin.Engine {
	h := api.NewQueueHandler(svc, testLogger())
	r := gin.New()
	r.GET("/queue", h.List)
	r.POST("/queue", h.Enqueue)
	r.POST("/queue/sync", h.Sync)
	r.DELETE("/queue", h.Clear)
	r.DELETE("/queue/:id", h.Remove)

	return r
}

func TestQueueEnqueue_Accepted(t *testing.T) {
	t.Parallel()

	var got offline.Request
	svc := &mockQueue{
		enqueueFn: func(_ context.Context, req offline.Request) (models.QueuedAction, error) {
			got = req
			return models.QueuedAction{ID: "a1", URL: req.URL, Method: "POST"}, nil
		},
	}

	w := doRequest(newQueueRouter(svc), http.MethodPost, "/queue",
		`{"url":"/api/v1/bookings","method":"post","payload":{"seat":"A1"}}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if got.URL != "/api/v1/bookings" || got.Method != "post" {
		t.Errorf("request = %+v", got)
	}
	if string(got.Payload) != `{"seat":"A1"}` {
		t.Errorf("payload = %s", got.Payload)
	}
}

func TestQueueEnqueue_Invalid(t *testing.T) {
	t.Parallel()

	svc := &mockQueue{
		enqueueFn: func(context.Context, offline.Request) (models.QueuedAction, error) {
			return models.QueuedAction{}, models.ErrInvalidValue("method", "BREW")
		},
	}
	r := newQueueRouter(svc)

	if w := doRequest(r, http.MethodPost, "/queue", `{"url":"/x"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing method: expected 400, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodPost, "/queue", `{"url":"/x","method":"BREW"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad method: expected 400, got %d", w.Code)
	}
}

func TestQueueSync_Outcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		n        int
		err      error
		wantCode int
	}{
		{"delivered", 3, nil, http.StatusOK},
		{"busy", 0, offline.ErrReplayInProgress, http.StatusConflict},
		{"failed", 1, &models.ReplayError{ActionID: "a2", Attempt: 2, Err: fmt.Errorf("%w: 503", models.ErrTransport)}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &mockQueue{
				replayFn: func(context.Context) (int, error) { return tt.n, tt.err },
			}

			w := doRequest(newQueueRouter(svc), http.MethodPost, "/queue/sync", "")
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
		})
	}
}

func TestQueueSync_FailureBody(t *testing.T) {
	t.Parallel()

	svc := &mockQueue{
		actions: []models.QueuedAction{{ID: "a2"}, {ID: "a3"}},
		replayFn: func(context.Context) (int, error) {
			return 1, &models.ReplayError{ActionID: "a2", Attempt: 2, Err: models.ErrTransport}
		},
	}

	w := doRequest(newQueueRouter(svc), http.MethodPost, "/queue/sync", "")

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["failed"] != "a2" || body["delivered"] != float64(1) || body["remaining"] != float64(2) {
		t.Errorf("unexpected body %v", body)
	}
}

func TestQueueRemoveAndClear(t *testing.T) {
	t.Parallel()

	svc := &mockQueue{
		actions: []models.QueuedAction{{ID: "a1"}},
		removeFn: func(_ context.Context, id string) (bool, error) {
			return id == "a1", nil
		},
	}
	r := newQueueRouter(svc)

	if w := doRequest(r, http.MethodDelete, "/queue/a1", ""); w.Code != http.StatusNoContent {
		t.Errorf("remove: expected 204, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodDelete, "/queue/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("remove missing: expected 404, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodDelete, "/queue", ""); w.Code != http.StatusNoContent {
		t.Errorf("clear: expected 204, got %d", w.Code)
	}
	if !svc.cleared {
		t.Error("Clear was not called")
	}

	w := doRequest(r, http.MethodGet, "/queue", "")
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["count"] != float64(0) {
		t.Errorf("count after clear = %v", body["count"])
	}
}
