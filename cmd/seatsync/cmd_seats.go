package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seatsync/seatsync/internal/seats"
	"github.com/seatsync/seatsync/internal/session"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connection, queue and room state of the running session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st session.Status
			if err := local.do(cmd.Context(), http.MethodGet, "/status", nil, &st); err != nil {
				return err
			}
			if flagFmt != "table" {
				output(st, string(st.State))
				return nil
			}
			formatTable([]string{"STATE", "ATTEMPT", "LAST EVENT", "USER", "QUEUED", "ROOMS"}, [][]string{{
				string(st.State),
				strconv.Itoa(st.Attempt),
				strconv.FormatUint(st.LastEventID, 10),
				st.UserID.String(),
				strconv.Itoa(st.Queued),
				strconv.Itoa(len(st.Rooms)),
			}})
			return nil
		},
	}
}

type seatList struct {
	ShowtimeID string           `json:"showtimeId"`
	Seats      []seats.SeatView `json:"seats"`
}

func seatPath(showtime, seat string) string {
	return "/seats/" + url.PathEscape(showtime) + "/" + url.PathEscape(seat) + "/lock"
}

func newSeatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seats <showtime-id>",
		Short: "Watch a showtime and print its seat map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var list seatList
			if err := local.do(cmd.Context(), http.MethodGet, "/seats/"+url.PathEscape(args[0]), nil, &list); err != nil {
				return err
			}
			if flagFmt != "table" {
				output(list, list.ShowtimeID)
				return nil
			}
			printSeats(list.Seats)
			return nil
		},
	}
}

func printSeats(views []seats.SeatView) {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		note := ""
		switch {
		case v.Pending:
			note = "pending"
		case v.Stale:
			note = "stale"
		}
		rows = append(rows, []string{v.SeatNumber, string(v.Status), v.Owner.String(), clockTime(v.ExpiresAt), note})
	}
	formatTable([]string{"SEAT", "STATUS", "OWNER", "EXPIRES", "NOTE"}, rows)
}

func newLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock <showtime-id> <seat>",
		Short: "Lock a seat for the current user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var view seats.SeatView
			if err := local.do(cmd.Context(), http.MethodPost, seatPath(args[0], args[1]), nil, &view); err != nil {
				return err
			}
			if flagFmt != "table" {
				output(view, view.SeatNumber)
				return nil
			}
			if view.Pending {
				fmt.Printf("Seat %s requested; waiting for the server to confirm.\n", view.SeatNumber)
				return nil
			}
			fmt.Printf("Seat %s locked until %s.\n", view.SeatNumber, clockTime(view.ExpiresAt))
			return nil
		},
	}
}

func newReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <showtime-id> <seat>",
		Short: "Release a seat lock held by the current user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var view seats.SeatView
			if err := local.do(cmd.Context(), http.MethodDelete, seatPath(args[0], args[1]), nil, &view); err != nil {
				return err
			}
			output(view, view.SeatNumber)
			return nil
		},
	}
}

func newRoomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List, join or leave push rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return roomsCall(cmd, http.MethodGet, "")
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "join <room-id>",
		Short: "Join a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return roomsCall(cmd, http.MethodPost, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "leave <room-id>",
		Short: "Leave a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return roomsCall(cmd, http.MethodDelete, args[0])
		},
	})

	return cmd
}

func roomsCall(cmd *cobra.Command, method, room string) error {
	path := "/rooms"
	if room != "" {
		path += "/" + url.PathEscape(room)
	}

	var resp struct {
		Rooms []string `json:"rooms"`
	}
	if err := local.do(cmd.Context(), method, path, nil, &resp); err != nil {
		return err
	}
	if flagFmt != "table" {
		output(resp, fmt.Sprint(len(resp.Rooms)))
		return nil
	}
	rows := make([][]string, 0, len(resp.Rooms))
	for _, r := range resp.Rooms {
		rows = append(rows, []string{r})
	}
	formatTable([]string{"ROOM"}, rows)
	return nil
}
