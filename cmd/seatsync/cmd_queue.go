package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seatsync/seatsync/client"
	"github.com/seatsync/seatsync/internal/models"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and replay actions queued while offline",
	}

	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueueSyncCmd())
	cmd.AddCommand(newQueueAddCmd())
	cmd.AddCommand(newQueueRemoveCmd())
	cmd.AddCommand(newQueueClearCmd())
	return cmd
}

func newQueueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued actions in replay order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Actions []models.QueuedAction `json:"actions"`
				Count   int                   `json:"count"`
			}
			if err := local.do(cmd.Context(), http.MethodGet, "/queue", nil, &resp); err != nil {
				return err
			}
			if flagFmt != "table" {
				output(resp.Actions, strconv.Itoa(resp.Count))
				return nil
			}
			rows := make([][]string, 0, len(resp.Actions))
			for _, a := range resp.Actions {
				rows = append(rows, []string{
					a.ID, a.Method, clip(a.URL), strconv.Itoa(a.Attempt),
					stamp(a.EnqueuedAt), clip(a.LastError),
				})
			}
			formatTable([]string{"ID", "METHOD", "URL", "ATTEMPT", "ENQUEUED", "LAST ERROR"}, rows)
			return nil
		},
	}
}

// syncResult is the body of POST /queue/sync for both outcomes.
type syncResult struct {
	Delivered int    `json:"delivered"`
	Remaining int    `json:"remaining"`
	Failed    string `json:"failed,omitempty"`
	Attempt   int    `json:"attempt,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newQueueSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay queued actions now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, data, err := local.send(cmd.Context(), http.MethodPost, "/queue/sync", nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK && status != http.StatusBadGateway {
				apiErr := &client.APIError{StatusCode: status}
				_ = json.Unmarshal(data, apiErr) //nolint:errcheck // message falls back to status
				return apiErr
			}

			var res syncResult
			if err := json.Unmarshal(data, &res); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			if flagFmt != "table" {
				output(res, strconv.Itoa(res.Remaining))
			} else {
				fmt.Printf("Delivered %d, %d remaining.\n", res.Delivered, res.Remaining)
			}
			if res.Failed != "" {
				return fmt.Errorf("action %s failed (attempt %d): %s", res.Failed, res.Attempt, res.Error)
			}
			return nil
		},
	}
}

func newQueueAddCmd() *cobra.Command {
	var (
		method  string
		id      string
		payload string
	)

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a request for delivery when online",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"url": args[0], "method": method}
			if id != "" {
				body["id"] = id
			}
			if payload != "" {
				if !json.Valid([]byte(payload)) {
					return fmt.Errorf("--payload is not valid JSON")
				}
				body["payload"] = json.RawMessage(payload)
			}

			var action models.QueuedAction
			if err := local.do(cmd.Context(), http.MethodPost, "/queue", body, &action); err != nil {
				return err
			}
			output(action, action.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", http.MethodPost, "HTTP method")
	cmd.Flags().StringVar(&id, "id", "", "Action ID (default: generated)")
	cmd.Flags().StringVarP(&payload, "payload", "d", "", "JSON request body")
	return cmd
}

func newQueueRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <action-id>",
		Short: "Drop one queued action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := local.do(cmd.Context(), http.MethodDelete, "/queue/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			formatQuiet(args[0])
			return nil
		},
	}
}

func newQueueClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every queued action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the queue without --yes")
			}
			return local.do(cmd.Context(), http.MethodDelete, "/queue", nil, nil)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm clearing")
	return cmd
}
