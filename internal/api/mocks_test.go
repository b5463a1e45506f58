package api_test

import (
	"context"

	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/offline"
	"github.com/seatsync/seatsync/internal/seats"
	"github.com/seatsync/seatsync/internal/session"
	"github.com/seatsync/seatsync/internal/ws"
)

// mockStatus implements api.StatusProvider for testing.
type mockStatus struct {
	status session.Status
}

func (m *mockStatus) Status() session.Status { return m.status }

// mockSeats implements api.SeatService for testing.
type mockSeats struct {
	seatsFn   func(ctx context.Context, showtimeID models.ID) ([]seats.SeatView, error)
	lockFn    func(ctx context.Context, showtimeID models.ID, seat string) (seats.SeatView, error)
	releaseFn func(ctx context.Context, showtimeID models.ID, seat string) (seats.SeatView, error)
}

func (m *mockSeats) Seats(ctx context.Context, showtimeID models.ID) ([]seats.SeatView, error) {
	return m.seatsFn(ctx, showtimeID)
}

func (m *mockSeats) Lock(ctx context.Context, showtimeID models.ID, seat string) (seats.SeatView, error) {
	return m.lockFn(ctx, showtimeID, seat)
}

func (m *mockSeats) Release(ctx context.Context, showtimeID models.ID, seat string) (seats.SeatView, error) {
	return m.releaseFn(ctx, showtimeID, seat)
}

// mockQueue implements api.QueueService for testing.
type mockQueue struct {
	actions   []models.QueuedAction
	enqueueFn func(ctx context.Context, req offline.Request) (models.QueuedAction, error)
	replayFn  func(ctx context.Context) (int, error)
	removeFn  func(ctx context.Context, id string) (bool, error)
	cleared   bool
}

func (m *mockQueue) List() []models.QueuedAction { return m.actions }

func (m *mockQueue) Enqueue(ctx context.Context, req offline.Request) (models.QueuedAction, error) {
	return m.enqueueFn(ctx, req)
}

func (m *mockQueue) ReplayAll(ctx context.Context) (int, error) { return m.replayFn(ctx) }

func (m *mockQueue) Remove(ctx context.Context, id string) (bool, error) {
	return m.removeFn(ctx, id)
}

func (m *mockQueue) Clear(context.Context) error {
	m.cleared = true
	m.actions = nil
	return nil
}

// mockRooms implements api.RoomService for testing.
type mockRooms struct {
	members []string
}

func (m *mockRooms) Members() []string { return m.members }

func (m *mockRooms) Join(_ context.Context, roomID string) error {
	m.members = append(m.members, roomID)
	return nil
}

func (m *mockRooms) Leave(_ context.Context, roomID string) error {
	for i, r := range m.members {
		if r == roomID {
			m.members = append(m.members[:i], m.members[i+1:]...)
			break
		}
	}
	return nil
}

// mockConnection implements api.ConnectionService for testing.
type mockConnection struct {
	status       session.Status
	connectFn    func(ctx context.Context) error
	tokens       []string
	tokenErr     error
	disconnected bool
}

func (m *mockConnection) Status() session.Status { return m.status }

func (m *mockConnection) Connect(ctx context.Context) error { return m.connectFn(ctx) }

func (m *mockConnection) Disconnect() {
	m.disconnected = true
	m.status.State = ws.StateDisconnected
}

func (m *mockConnection) UpdateToken(_ context.Context, token string) error {
	if m.tokenErr != nil {
		return m.tokenErr
	}
	m.tokens = append(m.tokens, token)
	return nil
}
