// Package notify holds the transient notifications and system banners
// shown to the user, derived from push frames filtered by preferences.
package notify

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/clock"
	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/router"
	"github.com/seatsync/seatsync/internal/storage"
)

// DefaultMaxVisible bounds the notification list.
const DefaultMaxVisible = 5

var (
	// ErrNotFound is returned for an unknown notification or banner ID.
	ErrNotFound = errors.New("notification not found")

	// ErrNotDismissible is returned when dismissing a pinned banner.
	ErrNotDismissible = errors.New("banner is not dismissible")
)

// defaultDurations apply when a non-persistent entry has no DurationMs.
var defaultDurations = map[models.NotificationType]time.Duration{
	models.NotificationSuccess: 5 * time.Second,
	models.NotificationInfo:    5 * time.Second,
	models.NotificationWarning: 7 * time.Second,
	models.NotificationError:   10 * time.Second,
}

// Options configures a Store.
type Options struct {
	Clock      clock.Clock
	Log        *logrus.Logger
	MaxVisible int

	// Persist, when set, loads and saves preferences.
	Persist storage.Store
}

type entry struct {
	n     models.Notification
	timer *clock.Timer
}

type bannerEntry struct {
	b     models.SystemBanner
	timer *clock.Timer
}

// Store is the notification and banner state.
type Store struct {
	clock      clock.Clock
	log        *logrus.Logger
	maxVisible int
	persist    storage.Store

	mu         sync.Mutex
	entries    []*entry
	banners    map[string]*bannerEntry
	prefs      Preferences
	suppressed map[string]int
	listeners  map[uint64]func()
	nextID     uint64
	subs       []*router.Subscription
	closed     bool
}

// New creates a Store, loading saved preferences from opts.Persist.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.MaxVisible <= 0 {
		opts.MaxVisible = DefaultMaxVisible
	}

	s := &Store{
		clock:      opts.Clock,
		log:        opts.Log,
		maxVisible: opts.MaxVisible,
		persist:    opts.Persist,
		banners:    make(map[string]*bannerEntry),
		prefs:      DefaultPreferences(),
		suppressed: make(map[string]int),
		listeners:  make(map[uint64]func()),
	}

	if s.persist != nil {
		data, err := s.persist.Load(ctx, storage.KeyNotificationPreferences)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("loading notification preferences: %w", err)
		default:
			var p Preferences
			if err := json.Unmarshal(data, &p); err != nil {
				s.log.WithError(err).Warn("notification preferences unreadable, using defaults")
			} else {
				s.prefs = merge(DefaultPreferences(), p)
			}
		}
	}

	return s, nil
}

// merge overlays saved switches on the defaults so categories added later
// start enabled.
func merge(base, saved Preferences) Preferences {
	for k, v := range saved.Categories {
		base.Categories[k] = v
	}
	for k, v := range saved.Channels {
		base.Channels[k] = v
	}
	return base
}

// Add inserts n and returns its ID. Non-persistent entries are removed
// after DurationMs (or the default for their type). Adding beyond
// MaxVisible evicts the oldest non-persistent entry, if there is one.
func (s *Store) Add(n models.Notification) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Category == "" {
		n.Category = models.CategoryGeneral
	}
	n.CreatedAt = s.clock.Now().UTC()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", errors.New("notification store closed")
	}

	if i := s.indexLocked(n.ID); i >= 0 {
		s.entries[i].timer.Stop()
		s.entries = slices.Delete(s.entries, i, i+1)
	}

	e := &entry{n: n}
	if !n.Persistent {
		d := time.Duration(n.DurationMs) * time.Millisecond
		if d == 0 {
			d = defaultDurations[n.Type]
		}
		e.timer = s.clock.AfterFunc(d, func() { s.expire(e) })
	}
	s.entries = append(s.entries, e)
	s.evictLocked()
	s.mu.Unlock()

	s.changed()
	return n.ID, nil
}

// evictLocked trims the list to maxVisible, oldest non-persistent first.
// Persistent entries are never evicted, so a list holding only persistent
// entries may grow past the limit.
func (s *Store) evictLocked() {
	for len(s.entries) > s.maxVisible {
		i := slices.IndexFunc(s.entries, func(e *entry) bool { return !e.n.Persistent })
		if i < 0 {
			return
		}
		s.entries[i].timer.Stop()
		s.entries = slices.Delete(s.entries, i, i+1)
	}
}

func (s *Store) expire(e *entry) {
	s.mu.Lock()
	i := slices.Index(s.entries, e)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	s.mu.Unlock()

	s.changed()
}

// Remove dismisses a notification and cancels its timer.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.entries[i].timer.Stop()
	s.entries = slices.Delete(s.entries, i, i+1)
	s.mu.Unlock()

	s.changed()
	return true
}

// Clear dismisses every notification. Banners are kept.
func (s *Store) Clear() {
	s.mu.Lock()
	for _, e := range s.entries {
		e.timer.Stop()
	}
	s.entries = nil
	s.mu.Unlock()

	s.changed()
}

// List returns the visible notifications, oldest first.
func (s *Store) List() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Notification, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.n
	}
	return out
}

// AddBanner shows b until it is dismissed or its EndTime passes. A banner
// whose EndTime already passed is ignored. Re-adding an ID replaces it.
func (s *Store) AddBanner(b models.SystemBanner) (string, error) {
	if b.Type == "" {
		b.Type = models.NotificationInfo
	}
	if !b.Type.Valid() {
		return "", models.ErrInvalidValue("type", string(b.Type))
	}
	if b.Title == "" && b.Message == "" {
		return "", models.ErrMissingContent
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	now := s.clock.Now()
	if b.StartTime.IsZero() {
		b.StartTime = now.UTC()
	}
	if b.EndTime != nil && !b.EndTime.After(now) {
		return b.ID, nil
	}

	s.mu.Lock()
	if old, ok := s.banners[b.ID]; ok {
		old.timer.Stop()
	}
	be := &bannerEntry{b: b}
	if b.EndTime != nil {
		be.timer = s.clock.AfterFunc(b.EndTime.Sub(now), func() { s.expireBanner(be) })
	}
	s.banners[b.ID] = be
	s.mu.Unlock()

	s.changed()
	return b.ID, nil
}

func (s *Store) expireBanner(be *bannerEntry) {
	s.mu.Lock()
	if s.banners[be.b.ID] != be {
		s.mu.Unlock()
		return
	}
	delete(s.banners, be.b.ID)
	s.mu.Unlock()

	s.changed()
}

// DismissBanner removes a banner. Pinned banners require force.
func (s *Store) DismissBanner(id string, force bool) error {
	s.mu.Lock()
	be, ok := s.banners[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if !be.b.Dismissible && !force {
		s.mu.Unlock()
		return ErrNotDismissible
	}
	be.timer.Stop()
	delete(s.banners, id)
	s.mu.Unlock()

	s.changed()
	return nil
}

// Banners returns the active banners, highest priority first, then by
// start time.
func (s *Store) Banners() []models.SystemBanner {
	s.mu.Lock()
	out := make([]models.SystemBanner, 0, len(s.banners))
	for _, be := range s.banners {
		out = append(out, be.b)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b models.SystemBanner) int {
		if c := cmp.Compare(priorityRank(b.Priority), priorityRank(a.Priority)); c != 0 {
			return c
		}
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func priorityRank(p string) int {
	switch p {
	case "critical":
		return 3
	case "high":
		return 2
	case "low":
		return 0
	default:
		return 1
	}
}

// Preferences returns a copy of the current preferences.
func (s *Store) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.clone()
}

// SetPreferences replaces the preferences and saves them if a backing
// store is configured.
func (s *Store) SetPreferences(ctx context.Context, p Preferences) error {
	p = merge(DefaultPreferences(), p.clone())

	if s.persist != nil {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding notification preferences: %w", err)
		}
		if err := s.persist.Save(ctx, storage.KeyNotificationPreferences, data); err != nil {
			return fmt.Errorf("saving notification preferences: %w", err)
		}
	}

	s.mu.Lock()
	s.prefs = p
	s.mu.Unlock()
	return nil
}

// Suppressed returns how many frames of category were filtered out.
func (s *Store) Suppressed(category string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppressed[category]
}

// OnChange registers fn to run after every change to notifications or
// banners. The returned function removes it.
func (s *Store) OnChange(fn func()) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) changed() {
	s.mu.Lock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Close stops every timer and detaches from the router.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, e := range s.entries {
		e.timer.Stop()
	}
	for _, be := range s.banners {
		be.timer.Stop()
	}
	subs := s.subs
	s.subs = nil
	clear(s.listeners)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.entries, func(e *entry) bool { return e.n.ID == id })
}
