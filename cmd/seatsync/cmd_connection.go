package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seatsync/seatsync/internal/session"
	"github.com/seatsync/seatsync/internal/ws"
)

func newReconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconnect",
		Short: "Start a fresh connect cycle on the running session",
		Long: `Reconnect asks the running session to dial the push server again with a
new retry budget. Use it after the session gave up ("failed") or after
"seatsync disconnect".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st session.Status
			if err := local.do(cmd.Context(), http.MethodPost, "/connection", nil, &st); err != nil {
				return err
			}
			if flagFmt != "table" {
				output(st, string(st.State))
				return nil
			}
			if st.State == ws.StateConnected {
				fmt.Println("Connected.")
				return nil
			}
			fmt.Printf("Still %s (attempt %d); the session keeps retrying.\n", st.State, st.Attempt)
			return nil
		},
	}
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Close the push connection and forget rooms and seat state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st session.Status
			if err := local.do(cmd.Context(), http.MethodDelete, "/connection", nil, &st); err != nil {
				return err
			}
			output(st, string(st.State))
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token [token|-]",
		Short: "Rotate the booking token of the running session",
		Long: `Token hands a new booking token to the running session. With no argument
or "-" the token is read from stdin, which keeps it out of shell history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := tokenArg(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			var st session.Status
			if err := local.do(cmd.Context(), http.MethodPut, "/token", map[string]string{"token": token}, &st); err != nil {
				return err
			}
			if flagFmt != "table" {
				output(st, st.UserID.String())
				return nil
			}
			fmt.Printf("Token updated for user %s.\n", st.UserID)
			return nil
		},
	}
}

// tokenArg returns the token from args, or the first stdin line when the
// argument is absent or "-".
func tokenArg(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return strings.TrimSpace(args[0]), nil
	}

	if f, ok := stdin.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			fmt.Fprint(os.Stderr, "Token: ")
		}
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("token is empty")
	}
	return token, nil
}
