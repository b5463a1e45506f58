package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/notify"
)

func newNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notes"},
		Short:   "List active notifications and banners",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var notes struct {
				Notifications []models.Notification `json:"notifications"`
			}
			if err := local.do(cmd.Context(), http.MethodGet, "/notifications", nil, &notes); err != nil {
				return err
			}
			var banners struct {
				Banners []models.SystemBanner `json:"banners"`
			}
			if err := local.do(cmd.Context(), http.MethodGet, "/banners", nil, &banners); err != nil {
				return err
			}

			if flagFmt != "table" {
				output(map[string]any{
					"notifications": notes.Notifications,
					"banners":       banners.Banners,
				}, strconv.Itoa(len(notes.Notifications)+len(banners.Banners)))
				return nil
			}

			rows := make([][]string, 0, len(banners.Banners)+len(notes.Notifications))
			for _, b := range banners.Banners {
				rows = append(rows, []string{b.ID, "banner/" + b.Priority, string(b.Type), clip(b.Title), clip(b.Message)})
			}
			for _, n := range notes.Notifications {
				rows = append(rows, []string{n.ID, n.Category, string(n.Type), clip(n.Title), clip(n.Message)})
			}
			formatTable([]string{"ID", "KIND", "TYPE", "TITLE", "MESSAGE"}, rows)
			return nil
		},
	}

	var force bool
	dismiss := &cobra.Command{
		Use:   "dismiss <id>",
		Short: "Dismiss a notification or banner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := url.PathEscape(args[0])
			err := local.do(cmd.Context(), http.MethodDelete, "/notifications/"+id, nil, nil)
			if err == nil {
				return nil
			}
			path := "/banners/" + id
			if force {
				path += "?force=true"
			}
			return local.do(cmd.Context(), http.MethodDelete, path, nil, nil)
		},
	}
	dismiss.Flags().BoolVar(&force, "force", false, "Dismiss pinned banners too")
	cmd.AddCommand(dismiss)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Dismiss every notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return local.do(cmd.Context(), http.MethodDelete, "/notifications", nil, nil)
		},
	})

	return cmd
}

func newPrefsCmd() *cobra.Command {
	var (
		enable  []string
		disable []string
	)

	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change notification preferences",
		Long: "Without flags, prints the preferences. --enable/--disable take category or channel " +
			"names (seatAvailability, bookingUpdates, systemAnnouncements, general, inApp, email, push).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefs notify.Preferences
			if err := local.do(cmd.Context(), http.MethodGet, "/preferences", nil, &prefs); err != nil {
				return err
			}

			if len(enable) > 0 || len(disable) > 0 {
				if err := applyPrefs(&prefs, enable, disable); err != nil {
					return err
				}
				if err := local.do(cmd.Context(), http.MethodPut, "/preferences", prefs, &prefs); err != nil {
					return err
				}
			}

			if flagFmt != "table" {
				output(prefs, "")
				return nil
			}
			rows := make([][]string, 0, len(prefs.Categories)+len(prefs.Channels))
			for _, name := range prefCategories {
				rows = append(rows, []string{"category", name, onOff(prefs.CategoryEnabled(name))})
			}
			for _, name := range prefChannels {
				rows = append(rows, []string{"channel", name, onOff(prefs.ChannelEnabled(name))})
			}
			formatTable([]string{"KIND", "NAME", "ENABLED"}, rows)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&enable, "enable", nil, "Categories or channels to enable")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "Categories or channels to disable")
	return cmd
}

var (
	prefCategories = []string{
		models.CategorySeatAvailability,
		models.CategoryBookingUpdates,
		models.CategorySystemAnnouncements,
		models.CategoryGeneral,
	}
	prefChannels = []string{notify.ChannelInApp, notify.ChannelEmail, notify.ChannelPush}
)

func applyPrefs(p *notify.Preferences, enable, disable []string) error {
	if p.Categories == nil {
		p.Categories = map[string]bool{}
	}
	if p.Channels == nil {
		p.Channels = map[string]bool{}
	}

	set := func(name string, on bool) error {
		for _, c := range prefCategories {
			if c == name {
				p.Categories[name] = on
				return nil
			}
		}
		for _, c := range prefChannels {
			if c == name {
				p.Channels[name] = on
				return nil
			}
		}
		return fmt.Errorf("unknown category or channel %q", name)
	}

	for _, name := range enable {
		if err := set(name, true); err != nil {
			return err
		}
	}
	for _, name := range disable {
		if err := set(name, false); err != nil {
			return err
		}
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
