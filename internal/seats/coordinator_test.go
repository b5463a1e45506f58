package seats

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/clock"
	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/router"
	"github.com/seatsync/seatsync/internal/ws"
)

const (
	showtime = models.ID("42")
	alice    = models.ID("alice")
	bob      = models.ID("bob")
	testTTL  = time.Minute
)

type sentFrame struct {
	cmd string
	req models.SeatLockRequest
}

type fakeSender struct {
	mu     sync.Mutex
	frames []sentFrame
	err    error
}

func (s *fakeSender) Send(_ context.Context, cmd string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, sentFrame{cmd: cmd, req: payload.(models.SeatLockRequest)})
	return nil
}

func (s *fakeSender) sent() []sentFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentFrame(nil), s.frames...)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func newTestCoordinator(t *testing.T, user models.ID, s ws.Sender, f Fetcher, fc *clock.FakeClock) *Coordinator {
	t.Helper()

	c, err := New(Options{
		ShowtimeID: showtime,
		UserID:     user,
		Sender:     s,
		Fetcher:    f,
		Clock:      fc,
		TTL:        testTTL,
		Log:        testLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)

	return c
}

func lockedBy(seat string, owner models.ID) models.SeatUpdate {
	return models.SeatUpdate{ShowtimeID: showtime, SeatNumber: seat, Status: models.SeatLocked, LockedBy: owner}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNewValidatesIdentity(t *testing.T) {
	if _, err := New(Options{UserID: alice}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("missing showtime: err = %v", err)
	}
	if _, err := New(Options{ShowtimeID: showtime}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("missing user: err = %v", err)
	}
}

func TestRequestLockIsOptimistic(t *testing.T) {
	s := &fakeSender{}
	c := newTestCoordinator(t, alice, s, nil, clock.Fake(time.Unix(0, 0)))

	p, err := c.RequestLock(context.Background(), "A1")
	if err != nil {
		t.Fatalf("RequestLock: %v", err)
	}

	view := c.Seat("A1")
	if view.Status != StatusMine || !view.Pending || view.Owner != alice {
		t.Errorf("view = %+v, want pending locked-by-me", view)
	}
	if p.Err() != nil {
		t.Errorf("lock resolved before any server frame: %v", p.Err())
	}

	frames := s.sent()
	want := sentFrame{cmd: models.CmdLockSeat, req: models.SeatLockRequest{ShowtimeID: showtime, SeatNumber: "A1", UserID: alice}}
	if len(frames) != 1 || frames[0] != want {
		t.Errorf("frames = %+v, want %+v", frames, want)
	}
}

func TestRequestLockRejectsEmptySeat(t *testing.T) {
	s := &fakeSender{}
	c := newTestCoordinator(t, alice, s, nil, clock.Fake(time.Unix(0, 0)))

	if _, err := c.RequestLock(context.Background(), ""); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if len(s.sent()) != 0 {
		t.Error("frame sent for invalid input")
	}
}

func TestServerConfirmationResolvesLock(t *testing.T) {
	c := newTestCoordinator(t, alice, &fakeSender{}, nil, clock.Fake(time.Unix(0, 0)))

	p, err := c.RequestLock(context.Background(), "A1")
	if err != nil {
		t.Fatalf("RequestLock: %v", err)
	}

	c.HandleSeatUpdate(lockedBy("A1", alice))

	if err := p.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait = %v, want confirmed", err)
	}
	if view := c.Seat("A1"); view.Status != StatusMine || view.Pending {
		t.Errorf("view = %+v, want confirmed locked-by-me", view)
	}
}

func TestConcurrentLockServerWordWins(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	a := newTestCoordinator(t, alice, &fakeSender{}, nil, fc)
	b := newTestCoordinator(t, bob, &fakeSender{}, nil, fc)
	ctx := context.Background()

	pa, err := a.RequestLock(ctx, "A1")
	if err != nil {
		t.Fatalf("alice RequestLock: %v", err)
	}
	pb, err := b.RequestLock(ctx, "A1")
	if err != nil {
		t.Fatalf("bob RequestLock: %v", err)
	}

	// The server granted bob; both clients receive the same frame.
	frame := lockedBy("A1", bob)
	a.HandleSeatUpdate(frame)
	b.HandleSeatUpdate(frame)

	if err := pa.Wait(waitCtx(t)); !errors.Is(err, models.ErrSeatTaken) || !errors.Is(err, models.ErrConflict) {
		t.Errorf("alice Wait = %v, want seat taken conflict", err)
	}
	if err := pb.Wait(waitCtx(t)); err != nil {
		t.Errorf("bob Wait = %v, want confirmed", err)
	}

	view := a.Seat("A1")
	if view.Status != StatusOther || view.Owner != bob || view.Lockable() {
		t.Errorf("alice view = %+v, want locked-by-other bob", view)
	}

	if _, err := a.RequestLock(ctx, "A1"); !errors.Is(err, models.ErrSeatTaken) {
		t.Errorf("retry err = %v, want ErrSeatTaken", err)
	}
}

func TestBookedOverridesOptimisticClaim(t *testing.T) {
	c := newTestCoordinator(t, alice, &fakeSender{}, nil, clock.Fake(time.Unix(0, 0)))

	p, _ := c.RequestLock(context.Background(), "B2")
	c.HandleSeatUpdate(models.SeatUpdate{ShowtimeID: showtime, SeatNumber: "B2", Status: models.SeatBooked, LockedBy: bob})

	if err := p.Wait(waitCtx(t)); !errors.Is(err, models.ErrSeatTaken) {
		t.Errorf("Wait = %v, want ErrSeatTaken", err)
	}
	if view := c.Seat("B2"); view.Status != StatusBooked {
		t.Errorf("view = %+v, want booked", view)
	}
}

func TestOtherShowtimeIsIgnored(t *testing.T) {
	c := newTestCoordinator(t, alice, &fakeSender{}, nil, clock.Fake(time.Unix(0, 0)))

	c.HandleSeatUpdate(models.SeatUpdate{ShowtimeID: "7", SeatNumber: "A1", Status: models.SeatBooked})

	if view := c.Seat("A1"); view.Status != StatusAvailable {
		t.Errorf("view = %+v, want untouched", view)
	}
	if len(c.Snapshot()) != 0 {
		t.Errorf("snapshot = %+v, want empty", c.Snapshot())
	}
}

func TestUnconfirmedLockExpiresAsStale(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	var fetches atomic.Int32
	fetcher := FetcherFunc(func(context.Context, models.ID) ([]models.SeatUpdate, error) {
		fetches.Add(1)
		return nil, nil
	})
	c := newTestCoordinator(t, alice, &fakeSender{}, fetcher, fc)

	p, err := c.RequestLock(context.Background(), "A1")
	if err != nil {
		t.Fatalf("RequestLock: %v", err)
	}

	fc.Advance(testTTL - time.Second)
	if p.Err() != nil {
		t.Fatalf("expired early: %v", p.Err())
	}

	fc.Advance(time.Second)

	if err := p.Wait(waitCtx(t)); !errors.Is(err, models.ErrLockExpired) {
		t.Fatalf("Wait = %v, want ErrLockExpired", err)
	}

	view := c.Seat("A1")
	if view.Status != StatusAvailable || !view.Stale || !view.Lockable() {
		t.Errorf("view = %+v, want stale available", view)
	}

	c.Close()
	if fetches.Load() == 0 {
		t.Error("expiry did not re-query the seat map")
	}
}

func TestOthersLockExpires(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	c := newTestCoordinator(t, alice, &fakeSender{}, nil, fc)

	c.HandleSeatUpdate(lockedBy("C3", bob))
	fc.Advance(testTTL)

	if view := c.Seat("C3"); view.Status != StatusAvailable || !view.Stale {
		t.Errorf("view = %+v, want stale available", view)
	}
}

func TestFreshFrameExtendsTTL(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	c := newTestCoordinator(t, alice, &fakeSender{}, nil, fc)

	c.HandleSeatUpdate(lockedBy("A1", alice))
	fc.Advance(testTTL / 2)
	c.HandleSeatUpdate(lockedBy("A1", alice))
	fc.Advance(testTTL/2 + time.Second)

	if view := c.Seat("A1"); view.Status != StatusMine {
		t.Errorf("view = %+v, want still locked-by-me", view)
	}
	if fc.PendingCount() != 1 {
		t.Errorf("pending timers = %d, want 1", fc.PendingCount())
	}
}

func TestAvailableFrameKeepsRequestPending(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	c := newTestCoordinator(t, alice, &fakeSender{}, nil, fc)

	p, _ := c.RequestLock(context.Background(), "A1")
	c.HandleSeatUpdate(models.SeatUpdate{ShowtimeID: showtime, SeatNumber: "A1", Status: models.SeatAvailable})

	if p.Err() != nil {
		t.Fatalf("request resolved by an availability frame: %v", p.Err())
	}
	if view := c.Seat("A1"); view.Status != StatusAvailable || !view.Pending {
		t.Errorf("view = %+v, want available with pending request", view)
	}

	again, err := c.RequestLock(context.Background(), "A1")
	if err != nil || again != p {
		t.Errorf("second RequestLock = %p, %v; want the pending request", again, err)
	}

	c.HandleSeatUpdate(lockedBy("A1", alice))
	if err := p.Wait(waitCtx(t)); err != nil {
		t.Errorf("Wait = %v, want confirmed", err)
	}
}

func TestSendFailureLeavesOutcomeUnknown(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	fetcher := FetcherFunc(func(context.Context, models.ID) ([]models.SeatUpdate, error) {
		// The lock went through before the connection dropped.
		return []models.SeatUpdate{{SeatNumber: "A1", Status: models.SeatLocked, LockedBy: alice}}, nil
	})
	c := newTestCoordinator(t, alice, &fakeSender{err: models.ErrNotConnected}, fetcher, fc)

	p, err := c.RequestLock(context.Background(), "A1")
	if !errors.Is(err, models.ErrTransport) || errors.Is(err, models.ErrConflict) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if p == nil {
		t.Fatal("no pending lock returned with transport error")
	}

	if err := p.Wait(waitCtx(t)); err != nil {
		t.Errorf("Wait = %v, want confirmed by re-query", err)
	}
}

func TestRefreshKeepsFramesNewerThanSnapshot(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	var c *Coordinator
	fetcher := FetcherFunc(func(context.Context, models.ID) ([]models.SeatUpdate, error) {
		// A push frame lands while the snapshot is on the wire.
		c.HandleSeatUpdate(lockedBy("A1", bob))
		return []models.SeatUpdate{
			{SeatNumber: "A1", Status: models.SeatAvailable},
			{SeatNumber: "A2", Status: models.SeatBooked},
		}, nil
	})
	c = newTestCoordinator(t, alice, &fakeSender{}, fetcher, fc)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if view := c.Seat("A1"); view.Status != StatusOther || view.Owner != bob {
		t.Errorf("A1 = %+v, want the newer lock by bob", view)
	}
	if view := c.Seat("A2"); view.Status != StatusBooked {
		t.Errorf("A2 = %+v, want booked from snapshot", view)
	}
}

func TestLockFailedFrameIsConflict(t *testing.T) {
	c := newTestCoordinator(t, alice, &fakeSender{}, nil, clock.Fake(time.Unix(0, 0)))

	p, _ := c.RequestLock(context.Background(), "D4")
	c.HandleLockFailed(models.SeatLockFailed{ShowtimeID: showtime, SeatNumber: "D4", Reason: "already locked"})

	if err := p.Wait(waitCtx(t)); !errors.Is(err, models.ErrConflict) {
		t.Errorf("Wait = %v, want conflict", err)
	}
	if c.Seat("D4").Lockable() {
		t.Error("rejected seat shown as lockable")
	}
}

func TestReleaseLockOnlyWhenHeld(t *testing.T) {
	s := &fakeSender{}
	c := newTestCoordinator(t, alice, s, nil, clock.Fake(time.Unix(0, 0)))
	ctx := context.Background()

	if err := c.ReleaseLock(ctx, "A1"); err != nil {
		t.Fatalf("ReleaseLock unknown: %v", err)
	}
	c.HandleSeatUpdate(lockedBy("A2", bob))
	if err := c.ReleaseLock(ctx, "A2"); err != nil {
		t.Fatalf("ReleaseLock other: %v", err)
	}
	if len(s.sent()) != 0 {
		t.Fatalf("frames = %+v, want none", s.sent())
	}

	c.HandleSeatUpdate(lockedBy("A1", alice))
	if err := c.ReleaseLock(ctx, "A1"); err != nil {
		t.Fatalf("ReleaseLock held: %v", err)
	}

	frames := s.sent()
	if len(frames) != 1 || frames[0].cmd != models.CmdUnlockSeat {
		t.Errorf("frames = %+v, want one unlock_seat", frames)
	}
	if view := c.Seat("A1"); view.Status != StatusAvailable {
		t.Errorf("view = %+v, want available", view)
	}
	if c.Seat("A2").Status != StatusOther {
		t.Error("release touched a seat held by someone else")
	}
}

func TestRouterFramesReachCoordinator(t *testing.T) {
	r := router.New(testLogger())
	c, err := New(Options{
		ShowtimeID: showtime,
		UserID:     alice,
		Sender:     &fakeSender{},
		Router:     r,
		Clock:      clock.Fake(time.Unix(0, 0)),
		Log:        testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	var changes []SeatView
	stop := c.OnChange(func(v SeatView) { changes = append(changes, v) })

	ev, err := ws.NewEvent(models.EventSeatUpdate, lockedBy("E5", bob))
	if err != nil {
		t.Fatal(err)
	}
	r.Dispatch(ev)
	stop()
	r.Dispatch(ev)

	if len(changes) != 1 || changes[0].Status != StatusOther {
		t.Errorf("changes = %+v, want one locked-by-other", changes)
	}

	c.Close()
	if r.Count(models.EventSeatUpdate) != 0 {
		t.Error("Close left router subscriptions behind")
	}
}
