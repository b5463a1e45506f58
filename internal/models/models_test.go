package models_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/seatsync/seatsync/internal/models"
)

func assertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func assertErrorContains(t *testing.T, err error, want string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error containing %q, got nil", want)
	}

	if !strings.Contains(err.Error(), want) {
		t.Errorf("expected error containing %q, got %q", want, err.Error())
	}
}

func TestQueuedAction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		action  models.QueuedAction
		wantErr string
	}{
		{name: "valid", action: models.QueuedAction{URL: "/api/v1/bookings", Method: "post"}},
		{name: "valid with payload", action: models.QueuedAction{URL: "/b", Method: "PUT", Payload: json.RawMessage(`{"a":1}`)}},
		{name: "missing url", action: models.QueuedAction{Method: "POST"}, wantErr: "url is required"},
		{name: "missing method", action: models.QueuedAction{URL: "/b"}, wantErr: "method is required"},
		{name: "get is not mutating", action: models.QueuedAction{URL: "/b", Method: "GET"}, wantErr: "invalid method"},
		{name: "bad payload", action: models.QueuedAction{URL: "/b", Method: "POST", Payload: json.RawMessage(`{`)}, wantErr: "invalid payload"},
		{name: "id too long", action: models.QueuedAction{ID: strings.Repeat("x", 256), URL: "/b", Method: "POST"}, wantErr: "exceeds maximum length"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.action.Validate()
			if tc.wantErr != "" {
				assertErrorContains(t, err, tc.wantErr)
				if !errors.Is(err, models.ErrValidation) {
					t.Errorf("error %v does not match ErrValidation", err)
				}
				return
			}
			assertNoError(t, err)
		})
	}
}

func TestQueuedAction_ValidateNormalizesMethod(t *testing.T) {
	a := models.QueuedAction{URL: "/b", Method: "patch"}
	assertNoError(t, a.Validate())

	if a.Method != "PATCH" {
		t.Errorf("method = %q, want PATCH", a.Method)
	}
}

func TestNotification_Validate(t *testing.T) {
	n := models.Notification{Title: "hi"}
	assertNoError(t, n.Validate())

	if n.Type != models.NotificationInfo {
		t.Errorf("default type = %q, want info", n.Type)
	}

	bad := models.Notification{Type: "loud", Title: "x"}
	assertErrorContains(t, bad.Validate(), "invalid type")

	empty := models.Notification{Type: models.NotificationError}
	assertErrorContains(t, empty.Validate(), "title or message is required")
}

func TestID_UnmarshalStringOrNumber(t *testing.T) {
	var u models.SeatUpdate
	assertNoError(t, json.Unmarshal([]byte(`{"showtimeId":42,"seatNumber":"A1","status":"locked","lockedBy":"u-7"}`), &u))

	if u.ShowtimeID != "42" {
		t.Errorf("showtimeId = %q, want 42", u.ShowtimeID)
	}
	if u.LockedBy != "u-7" {
		t.Errorf("lockedBy = %q, want u-7", u.LockedBy)
	}

	var v models.SeatUpdate
	assertNoError(t, json.Unmarshal([]byte(`{"showtimeId":"s-1","seatNumber":"B2","status":"available","lockedBy":null}`), &v))
	if v.ShowtimeID != "s-1" || v.LockedBy != "" {
		t.Errorf("got %+v", v)
	}

	var w models.SeatUpdate
	if err := json.Unmarshal([]byte(`{"showtimeId":true}`), &w); err == nil {
		t.Error("expected error for boolean id")
	}
}

func TestSeatStatus_Valid(t *testing.T) {
	for _, s := range []models.SeatStatus{models.SeatAvailable, models.SeatLocked, models.SeatBooked} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if models.SeatStatus("held").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestReplayError_Unwrap(t *testing.T) {
	cause := models.ErrNotConnected
	err := error(&models.ReplayError{ActionID: "a1", Attempt: 2, Err: cause})

	if !errors.Is(err, models.ErrTransport) {
		t.Error("ReplayError should unwrap to ErrTransport")
	}

	var re *models.ReplayError
	if !errors.As(err, &re) || re.ActionID != "a1" {
		t.Errorf("errors.As failed: %v", err)
	}
	assertErrorContains(t, err, "attempt 2")
}

func TestSeatTakenIsConflict(t *testing.T) {
	if !errors.Is(models.ErrSeatTaken, models.ErrConflict) {
		t.Error("ErrSeatTaken should match ErrConflict")
	}
	if errors.Is(models.ErrSeatTaken, models.ErrTransport) {
		t.Error("ErrSeatTaken must not match ErrTransport")
	}
}
