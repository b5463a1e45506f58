// Package router fans inbound push frames out to independently
// registered handlers, keyed by event name.
package router

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/metrics"
	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/ws"
)

// maxEnvelopeDepth bounds unwrapping of nested real_time_event envelopes.
const maxEnvelopeDepth = 4

// Handler processes one frame. A returned error is logged and counted;
// it never stops delivery to other handlers.
type Handler func(ev ws.Event) error

// Subscription is the disposer returned by Subscribe.
type Subscription struct {
	router *Router
	event  string
	id     uint64
	active atomic.Bool
}

// Unsubscribe removes the handler. It is safe to call more than once and
// from inside a handler; the handler is never invoked afterwards.
func (s *Subscription) Unsubscribe() {
	if s == nil || !s.active.CompareAndSwap(true, false) {
		return
	}
	s.router.remove(s)
}

// Active reports whether the subscription is still registered.
func (s *Subscription) Active() bool {
	return s != nil && s.active.Load()
}

type entry struct {
	sub *Subscription
	fn  Handler
}

// Router is a typed publish/subscribe registry. It implements ws.Publisher.
type Router struct {
	log *logrus.Logger

	mu      sync.RWMutex
	buckets map[string]map[uint64]entry
	nextID  uint64
}

// New creates an empty Router.
func New(log *logrus.Logger) *Router {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Router{log: log, buckets: make(map[string]map[uint64]entry)}
}

// Subscribe registers fn for frames named event.
func (r *Router) Subscribe(event string, fn Handler) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub := &Subscription{router: r, event: event, id: r.nextID}
	sub.active.Store(true)

	bucket, ok := r.buckets[event]
	if !ok {
		bucket = make(map[uint64]entry)
		r.buckets[event] = bucket
	}
	bucket[sub.id] = entry{sub: sub, fn: fn}

	return sub
}

func (r *Router) remove(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.buckets[s.event]
	if !ok {
		return
	}
	delete(bucket, s.id)
	if len(bucket) == 0 {
		delete(r.buckets, s.event)
	}
}

// Count returns the number of handlers registered for event.
func (r *Router) Count(event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buckets[event])
}

// Events returns the event names that currently have handlers.
func (r *Router) Events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.buckets))
	for name := range r.buckets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Dispatch delivers ev to every handler registered for its type, unwrapping
// real_time_event envelopes first. Handlers run synchronously in
// registration order.
func (r *Router) Dispatch(ev ws.Event) {
	for depth := 0; ev.Type == models.EventRealTimeEvent; depth++ {
		if depth == maxEnvelopeDepth {
			r.log.WithField("event_id", ev.ID).Warn("dropping frame: envelope nested too deep")
			return
		}

		inner, err := unwrap(ev)
		if err != nil {
			r.log.WithError(err).WithField("event_id", ev.ID).Warn("dropping malformed envelope")
			metrics.ErrorsTotal.WithLabelValues("envelope").Inc()
			return
		}
		ev = inner
	}

	r.deliver(ev)
}

func unwrap(ev ws.Event) (ws.Event, error) {
	var env models.RealTimeEvent
	if err := ev.Decode(&env); err != nil {
		return ws.Event{}, err
	}
	if env.Type == "" {
		return ws.Event{}, fmt.Errorf("envelope has no type")
	}

	return ws.Event{Type: env.Type, ID: ev.ID, Data: env.Data, Time: ev.Time}, nil
}

func (r *Router) deliver(ev ws.Event) {
	r.mu.RLock()
	bucket := r.buckets[ev.Type]
	snapshot := make([]entry, 0, len(bucket))
	for _, e := range bucket {
		snapshot = append(snapshot, e)
	}
	r.mu.RUnlock()

	slices.SortFunc(snapshot, func(a, b entry) int {
		switch {
		case a.sub.id < b.sub.id:
			return -1
		case a.sub.id > b.sub.id:
			return 1
		}
		return 0
	})

	for _, e := range snapshot {
		// An earlier handler in this pass may have disposed this one.
		if !e.sub.active.Load() {
			continue
		}
		r.invoke(e, ev)
	}
}

func (r *Router) invoke(e entry, ev ws.Event) {
	defer func() {
		if p := recover(); p != nil {
			metrics.ListenerFailures.WithLabelValues(ev.Type).Inc()
			r.log.WithFields(logrus.Fields{
				"event":        ev.Type,
				"subscription": e.sub.id,
				"panic":        fmt.Sprint(p),
			}).Error("event handler panicked")
		}
	}()

	if err := e.fn(ev); err != nil {
		metrics.ListenerFailures.WithLabelValues(ev.Type).Inc()
		r.log.WithError(err).WithFields(logrus.Fields{
			"event":        ev.Type,
			"subscription": e.sub.id,
		}).Warn("event handler failed")
	}
}

// Close disposes every subscription.
func (r *Router) Close() {
	r.mu.Lock()
	buckets := r.buckets
	r.buckets = make(map[string]map[uint64]entry)
	r.mu.Unlock()

	for _, bucket := range buckets {
		for _, e := range bucket {
			e.sub.active.Store(false)
		}
	}
}

// SubscribeJSON registers fn with the frame payload decoded into T. A
// payload that does not decode counts as a handler failure.
func SubscribeJSON[T any](r *Router, event string, fn func(T) error) *Subscription {
	return r.Subscribe(event, func(ev ws.Event) error {
		var v T
		if err := ev.Decode(&v); err != nil {
			return err
		}
		return fn(v)
	})
}
