// Package offline keeps a durable FIFO of mutating requests and replays
// them, strictly in order, whenever the push connection comes back.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/clock"
	"github.com/seatsync/seatsync/internal/metrics"
	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/router"
	"github.com/seatsync/seatsync/internal/storage"
	"github.com/seatsync/seatsync/internal/ws"
)

var (
	// ErrReplayInProgress is returned by ReplayAll while another pass runs.
	ErrReplayInProgress = errors.New("replay already in progress")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("offline queue closed")
)

// Executor delivers one queued action. A nil error means the backend
// accepted it and the action may be dropped.
type Executor interface {
	Execute(ctx context.Context, action models.QueuedAction) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, action models.QueuedAction) error

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, action models.QueuedAction) error {
	return f(ctx, action)
}

// Request describes an action to enqueue. ID is optional.
type Request struct {
	ID      string
	URL     string
	Method  string
	Payload json.RawMessage
}

// Options configures a Queue.
type Options struct {
	Clock clock.Clock
	Log   *logrus.Logger

	// Online reports whether an immediate delivery attempt makes sense.
	// Nil means never; replay then waits for a connected transition or a
	// manual ReplayAll.
	Online func() bool
}

// Queue is the durable action queue.
type Queue struct {
	store  storage.Store
	exec   Executor
	clock  clock.Clock
	log    *logrus.Logger
	online func() bool

	mu      sync.Mutex
	actions []models.QueuedAction
	sub     *router.Subscription
	closed  bool

	replaying atomic.Bool
	drained   func() // runs when a pass empties the queue; tests only
	bg        sync.WaitGroup
	bgCtx     context.Context
	cancel    context.CancelFunc
}

// Open loads the persisted queue from store. A missing key starts empty;
// an unreadable payload is logged and left in place until the next save.
func Open(ctx context.Context, store storage.Store, exec Executor, opts Options) (*Queue, error) {
	if store == nil || exec == nil {
		return nil, fmt.Errorf("offline queue: store and executor are required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	q := &Queue{
		store:  store,
		exec:   exec,
		clock:  opts.Clock,
		log:    opts.Log,
		online: opts.Online,
	}
	q.bgCtx, q.cancel = context.WithCancel(context.Background())

	data, err := store.Load(ctx, storage.KeyOfflineQueue)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		q.cancel()
		return nil, fmt.Errorf("loading offline queue: %w", err)
	default:
		if err := json.Unmarshal(data, &q.actions); err != nil {
			q.log.WithError(err).Warn("offline queue payload unreadable, starting empty")
			q.actions = nil
		}
	}

	metrics.QueueDepth.Set(float64(len(q.actions)))
	q.log.WithField("actions", len(q.actions)).Debug("offline queue loaded")
	return q, nil
}

// Attach starts a replay pass on every transition into connected.
func (q *Queue) Attach(r *router.Router) {
	sub := router.SubscribeJSON(r, models.EventConnectionState, func(sc ws.StateChange) error {
		if sc.To == ws.StateConnected {
			q.replayAsync()
		}
		return nil
	})

	q.mu.Lock()
	q.sub = sub
	q.mu.Unlock()
}

// Enqueue validates req and persists it before any delivery attempt. A
// request whose ID is already queued returns the existing entry.
func (q *Queue) Enqueue(ctx context.Context, req Request) (models.QueuedAction, error) {
	action := models.QueuedAction{
		ID:      req.ID,
		URL:     req.URL,
		Method:  req.Method,
		Payload: req.Payload,
	}
	if err := action.Validate(); err != nil {
		return models.QueuedAction{}, err
	}
	if action.ID == "" {
		action.ID = uuid.NewString()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return models.QueuedAction{}, ErrClosed
	}
	if i := q.indexLocked(action.ID); i >= 0 {
		existing := q.actions[i]
		q.mu.Unlock()
		return existing, nil
	}

	action.EnqueuedAt = q.clock.Now().UTC()
	q.actions = append(q.actions, action)
	if err := q.persistLocked(ctx); err != nil {
		q.actions = q.actions[:len(q.actions)-1]
		q.mu.Unlock()
		return models.QueuedAction{}, err
	}
	q.mu.Unlock()

	q.log.WithFields(logrus.Fields{
		"action": action.ID,
		"method": action.Method,
		"url":    action.URL,
	}).Debug("action queued")

	if q.online != nil && q.online() {
		q.replayAsync()
	}
	return action, nil
}

// ReplayAll delivers queued actions in enqueue order, one at a time. The
// attempt counter is saved before each try; an action is removed only
// after it succeeds. The first failure stops the pass and is returned as
// a *models.ReplayError; the actions behind it wait for the next pass.
func (q *Queue) ReplayAll(ctx context.Context) (int, error) {
	if !q.replaying.CompareAndSwap(false, true) {
		return 0, ErrReplayInProgress
	}

	delivered := 0
	for {
		n, err := q.replayPass(ctx)
		delivered += n
		if err == nil && q.drained != nil {
			q.drained()
		}
		q.replaying.Store(false)

		// An action enqueued after the pass found the queue empty saw the
		// pass still running and did not start its own.
		if err != nil || !q.hasWork() || !q.replaying.CompareAndSwap(false, true) {
			return delivered, err
		}
	}
}

func (q *Queue) replayPass(ctx context.Context) (int, error) {
	delivered := 0
	for {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		action, ok, err := q.beginAttempt(ctx)
		if err != nil {
			return delivered, err
		}
		if !ok {
			return delivered, nil
		}

		log := q.log.WithFields(logrus.Fields{"action": action.ID, "attempt": action.Attempt})

		if err := q.exec.Execute(ctx, action); err != nil {
			metrics.ReplayOutcomes.WithLabelValues("failed").Inc()
			q.recordFailure(ctx, action.ID, err)
			log.WithError(err).Warn("replay halted")
			return delivered, &models.ReplayError{ActionID: action.ID, Attempt: action.Attempt, Err: err}
		}

		metrics.ReplayOutcomes.WithLabelValues("delivered").Inc()
		if err := q.finish(ctx, action.ID); err != nil {
			return delivered, err
		}
		delivered++
		log.Debug("action replayed")
	}
}

func (q *Queue) hasWork() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.closed && len(q.actions) > 0
}

// beginAttempt bumps and persists the head's attempt counter.
func (q *Queue) beginAttempt(ctx context.Context) (models.QueuedAction, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.actions) == 0 {
		return models.QueuedAction{}, false, nil
	}

	q.actions[0].Attempt++
	if err := q.persistLocked(ctx); err != nil {
		q.actions[0].Attempt--
		return models.QueuedAction{}, false, err
	}
	return q.actions[0], true, nil
}

func (q *Queue) recordFailure(ctx context.Context, id string, cause error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return
	}
	q.actions[i].LastError = cause.Error()
	if err := q.persistLocked(ctx); err != nil {
		q.log.WithError(err).WithField("action", id).Warn("failed to record replay error")
	}
}

// finish drops a delivered action. It may already be gone if Remove or
// Clear ran during delivery.
func (q *Queue) finish(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return nil
	}
	q.actions = slices.Delete(q.actions, i, i+1)
	return q.persistLocked(ctx)
}

// Remove drops a single action by ID. It reports whether it was queued.
func (q *Queue) Remove(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return false, nil
	}
	removed := q.actions[i]
	q.actions = slices.Delete(q.actions, i, i+1)
	if err := q.persistLocked(ctx); err != nil {
		q.actions = slices.Insert(q.actions, i, removed)
		return false, err
	}
	return true, nil
}

// Clear drops every queued action.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.Clear(ctx, storage.KeyOfflineQueue); err != nil {
		return fmt.Errorf("clearing offline queue: %w", err)
	}
	q.actions = nil
	metrics.QueueDepth.Set(0)
	q.log.Info("offline queue cleared")
	return nil
}

// List returns a copy of the queued actions in replay order.
func (q *Queue) List() []models.QueuedAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.actions)
}

// Len returns the number of queued actions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// Replaying reports whether a replay pass is running.
func (q *Queue) Replaying() bool {
	return q.replaying.Load()
}

// Close detaches from the router and waits for background replays.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	sub := q.sub
	q.sub = nil
	q.mu.Unlock()

	sub.Unsubscribe()
	q.cancel()
	q.bg.Wait()
}

func (q *Queue) replayAsync() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.bg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.bg.Done()
		n, err := q.ReplayAll(q.bgCtx)
		switch {
		case err == nil:
			if n > 0 {
				q.log.WithField("delivered", n).Info("offline queue replayed")
			}
		case errors.Is(err, ErrReplayInProgress), errors.Is(err, context.Canceled):
		default:
			q.log.WithError(err).Debug("replay pass stopped")
		}
	}()
}

func (q *Queue) indexLocked(id string) int {
	return slices.IndexFunc(q.actions, func(a models.QueuedAction) bool { return a.ID == id })
}

func (q *Queue) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(q.actions)
	if err != nil {
		return fmt.Errorf("encoding offline queue: %w", err)
	}
	if err := q.store.Save(ctx, storage.KeyOfflineQueue, data); err != nil {
		return fmt.Errorf("saving offline queue: %w", err)
	}
	metrics.QueueDepth.Set(float64(len(q.actions)))
	return nil
}
