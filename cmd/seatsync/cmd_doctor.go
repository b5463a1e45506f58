package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/seatsync/seatsync/client"
	"github.com/seatsync/seatsync/internal/config"
	"github.com/seatsync/seatsync/internal/session"
	"github.com/seatsync/seatsync/internal/ws"
)

const doctorTimeout = 5 * time.Second

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration and connectivity",
		Long:  "Run diagnostic checks against config, booking API, push server, storage and the local state API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context())
		},
	}
}

type checkResult struct {
	Name   string
	Passed bool
	Detail string
	Hint   string
}

func runDoctor(ctx context.Context) error {
	fmt.Println("\nSeatSync Doctor")
	fmt.Println("===============")

	var results []checkResult

	// 1. Profile file.
	cfgPath, _, cfgErr := loadConfigFile()
	if cfgErr != nil {
		results = append(results, checkResult{
			Name: "Config file", Passed: false,
			Detail: cfgPath,
			Hint:   "Run: seatsync init (or set SEATSYNC_* variables)",
		})
	} else {
		results = append(results, checkResult{
			Name: "Config file", Passed: true,
			Detail: fmt.Sprintf("found (%s)", cfgPath),
		})
	}

	// 2. Effective configuration.
	var cfg *config.Config
	err := applyProfileEnv()
	if err == nil {
		cfg, err = config.Load()
	}
	if err != nil {
		results = append(results, checkResult{
			Name: "Configuration", Passed: false,
			Hint: err.Error(),
		})
		return printResults(results)
	}
	results = append(results, checkResult{
		Name: "Configuration", Passed: true,
		Detail: fmt.Sprintf("storage=%s, local API on %s", cfg.StorageBackend, cfg.Addr()),
	})

	// 3. Token and identity.
	token := cfg.Token.Value()
	if token == "" {
		results = append(results, checkResult{
			Name: "Session token", Passed: false,
			Hint: "Set SEATSYNC_TOKEN or run seatsync init",
		})
	} else {
		detail := "configured"
		if id, err := session.UserIDFromToken(token); err == nil {
			detail = "user " + id.String()
		} else if cfg.UserID != "" {
			detail = "user " + cfg.UserID + " (from SEATSYNC_USER_ID)"
		}
		results = append(results, checkResult{Name: "Session token", Passed: true, Detail: detail})
	}

	// 4. Booking API.
	results = append(results, doctorCheckAPI(ctx, cfg.APIURL, token))

	// 5. Push server.
	results = append(results, doctorCheckPush(ctx, cfg.PushURL.Value(), token))

	// 6. Storage backend.
	results = append(results, doctorCheckStorage(ctx, cfg))

	// 7. Local state API (informational; only up while `seatsync run` is).
	results = append(results, doctorCheckLocal(ctx))

	return printResults(results)
}

func printResults(results []checkResult) error {
	fmt.Println()
	allPassed := true
	for _, r := range results {
		if r.Passed {
			if r.Detail != "" {
				fmt.Printf("✅ %s: %s\n", r.Name, r.Detail)
			} else {
				fmt.Printf("✅ %s\n", r.Name)
			}
			continue
		}

		allPassed = false
		if r.Detail != "" {
			fmt.Printf("❌ %s: %s\n", r.Name, r.Detail)
		} else {
			fmt.Printf("❌ %s\n", r.Name)
		}
		if r.Hint != "" {
			fmt.Printf("   Hint: %s\n", r.Hint)
		}
	}

	fmt.Println()
	if !allPassed {
		fmt.Println("❌ Some checks failed.")
		return fmt.Errorf("doctor found issues")
	}
	fmt.Println("✅ All checks passed!")
	return nil
}

func doctorCheckAPI(ctx context.Context, apiURL, token string) checkResult {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	h, err := client.New(apiURL, client.WithToken(token)).Health(ctx)
	if err != nil {
		hint := fmt.Sprintf("Is the booking API running? Error: %v", err)
		if client.IsUnauthorized(err) {
			hint = "The booking API rejected the session token."
		}
		return checkResult{Name: "Booking API", Passed: false, Detail: apiURL, Hint: hint}
	}

	detail := apiURL
	if h.Version != "" {
		detail = fmt.Sprintf("%s (v%s)", apiURL, h.Version)
	}
	return checkResult{Name: "Booking API", Passed: true, Detail: detail}
}

func doctorCheckPush(ctx context.Context, pushURL, token string) checkResult {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	conn, err := (&ws.WebSocketDialer{}).Dial(ctx, pushURL, token)
	if err != nil {
		return checkResult{
			Name: "Push server", Passed: false,
			Hint: fmt.Sprintf("Could not open the push channel. Error: %v", err),
		}
	}
	conn.Close() //nolint:errcheck // probe only

	return checkResult{Name: "Push server", Passed: true, Detail: "reachable"}
}

func doctorCheckStorage(ctx context.Context, cfg *config.Config) checkResult {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	_, closer, err := session.OpenStore(ctx, cfg, profileName(), newLogger("error"))
	if err != nil {
		return checkResult{Name: "Storage", Passed: false, Detail: cfg.StorageBackend, Hint: err.Error()}
	}
	defer closer.Close() //nolint:errcheck // probe only

	if hc, ok := closer.(interface{ HealthCheck(context.Context) error }); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return checkResult{Name: "Storage", Passed: false, Detail: cfg.StorageBackend, Hint: err.Error()}
		}
	}
	return checkResult{Name: "Storage", Passed: true, Detail: cfg.StorageBackend}
}

func doctorCheckLocal(ctx context.Context) checkResult {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	var health struct {
		Connection string `json:"connection"`
	}
	if err := local.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return checkResult{
			Name: "Local session", Passed: true,
			Detail: "not running (start it with: seatsync run)",
		}
	}
	return checkResult{Name: "Local session", Passed: true, Detail: "running, push " + health.Connection}
}
