package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/seatsync/seatsync/internal/api"
	"github.com/seatsync/seatsync/internal/clock"
	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/notify"
	"github.com/seatsync/seatsync/internal/router"
	"github.com/seatsync/seatsync/internal/ws"
)

const testLocalToken = "local-secret-token"

func newTestAPI(t *testing.T) (http.Handler, *router.Router, *mockRooms) {
	t.Helper()

	notes, err := notify.New(context.Background(), notify.Options{
		Clock: clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Log:   testLogger(),
	})
	if err != nil {
		t.Fatalf("notify.New: %v", err)
	}
	t.Cleanup(notes.Close)

	events := router.New(testLogger())
	t.Cleanup(events.Close)

	rooms := &mockRooms{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := api.NewRouter(ctx, &api.RouterDeps{
		Log:           testLogger(),
		Status:        &mockStatus{},
		Seats:         &mockSeats{},
		Notifications: notes,
		Queue:         &mockQueue{},
		Rooms:         rooms,
		Connection:    &mockConnection{connectFn: func(context.Context) error { return nil }},
		Events:        events,
		CORSOrigins:   []string{"http://localhost:5173"},
		Version:       "test",
		LocalAPIToken: testLocalToken,
	})

	return h, events, rooms
}

func authed(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, http.NoBody)
	req.Header.Set("Authorization", "Bearer "+testLocalToken)
	return req
}

func TestRouter_HealthIsPublic(t *testing.T) {
	t.Parallel()

	h, _, _ := newTestAPI(t)

	w := doRequest(h, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestRouter_RequiresLocalToken(t *testing.T) {
	t.Parallel()

	h, _, _ := newTestAPI(t)

	w := doRequest(h, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, authed(http.MethodGet, "/api/v1/status"))
	if w.Code != http.StatusOK {
		t.Fatalf("authed: expected 200, got %d", w.Code)
	}
}

func TestRouter_Rooms(t *testing.T) {
	t.Parallel()

	h, _, rooms := newTestAPI(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authed(http.MethodPost, "/api/v1/rooms/showtime:s1"))
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", w.Code)
	}
	if len(rooms.members) != 1 || rooms.members[0] != "showtime:s1" {
		t.Fatalf("members = %v", rooms.members)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, authed(http.MethodDelete, "/api/v1/rooms/showtime:s1"))
	if w.Code != http.StatusOK {
		t.Fatalf("leave: expected 200, got %d", w.Code)
	}
	if len(rooms.members) != 0 {
		t.Errorf("members after leave = %v", rooms.members)
	}
}

func TestRouter_ConnectionRoutes(t *testing.T) {
	t.Parallel()

	h, _, _ := newTestAPI(t)

	if w := doRequest(h, http.MethodPost, "/api/v1/connection", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated reconnect: expected 401, got %d", w.Code)
	}

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/connection"},
		{http.MethodDelete, "/api/v1/connection"},
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, authed(route.method, route.path))
		if w.Code != http.StatusOK {
			t.Errorf("%s %s: expected 200, got %d", route.method, route.path, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/token", strings.NewReader(`{"token":"next"}`))
	req.Header.Set("Authorization", "Bearer "+testLocalToken)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("PUT /token: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	h, _, _ := newTestAPI(t)

	w := doRequest(h, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}

func TestRouter_EventStream(t *testing.T) {
	t.Parallel()

	h, events, _ := newTestAPI(t)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/events", &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + testLocalToken}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow() //nolint:errcheck // test teardown

	deadline := time.Now().Add(2 * time.Second)
	for events.Count(models.EventSeatUpdate) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ev, err := ws.NewEvent(models.EventSeatUpdate, models.SeatUpdate{ShowtimeID: "s1", SeatNumber: "A1", Status: "available"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	ev.ID = 7
	events.Dispatch(ev)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var got ws.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Type != models.EventSeatUpdate || got.ID != 7 {
		t.Errorf("got %+v", got)
	}
}
