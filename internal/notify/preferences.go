package notify

import (
	"maps"

	"github.com/seatsync/seatsync/internal/models"
)

// Delivery channels. Only in-app entries are materialized by the Store;
// the others are carried for the backend profile.
const (
	ChannelInApp = "inApp"
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// Preferences holds per-category and per-channel switches. A key that is
// absent counts as enabled.
type Preferences struct {
	Categories map[string]bool `json:"categories"`
	Channels   map[string]bool `json:"channels"`
}

// DefaultPreferences enables every category and the in-app and email
// channels.
func DefaultPreferences() Preferences {
	return Preferences{
		Categories: map[string]bool{
			models.CategorySeatAvailability:    true,
			models.CategoryBookingUpdates:      true,
			models.CategorySystemAnnouncements: true,
			models.CategoryGeneral:             true,
		},
		Channels: map[string]bool{
			ChannelInApp: true,
			ChannelEmail: true,
			ChannelPush:  false,
		},
	}
}

// CategoryEnabled reports whether category may produce entries.
func (p Preferences) CategoryEnabled(category string) bool {
	on, ok := p.Categories[category]
	return !ok || on
}

// ChannelEnabled reports whether channel is switched on.
func (p Preferences) ChannelEnabled(channel string) bool {
	on, ok := p.Channels[channel]
	return !ok || on
}

// Allows reports whether a frame of category becomes a visible entry.
func (p Preferences) Allows(category string) bool {
	return p.ChannelEnabled(ChannelInApp) && p.CategoryEnabled(category)
}

func (p Preferences) clone() Preferences {
	return Preferences{Categories: maps.Clone(p.Categories), Channels: maps.Clone(p.Channels)}
}
