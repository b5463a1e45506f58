package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/seatsync/seatsync/client"
)

const (
	defaultAPIURL  = "http://localhost:8080"
	defaultPushURL = "ws://localhost:8080/ws"
)

func newInitCmd() *cobra.Command {
	var p configProfile

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up the SeatSync profile file",
		Long:  "Interactive setup wizard that creates ~/.seatsync/config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			nonInteractive := p.APIURL != "" || p.Token != ""
			return runInit(cmd.Context(), p, nonInteractive)
		},
	}

	cmd.Flags().StringVar(&p.APIURL, "api-url", "", "Booking API URL (non-interactive mode)")
	cmd.Flags().StringVar(&p.PushURL, "push-url", "", "Push server URL")
	cmd.Flags().StringVar(&p.Token, "token", "", "Session token (non-interactive mode)")
	cmd.Flags().StringVar(&p.LocalToken, "local-api-token", "", "Token protecting the local state API")
	return cmd
}

func prompt(reader *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("  %s [%s]: ", label, def)
	} else {
		fmt.Printf("  %s: ", label)
	}
	line, _ := reader.ReadString('\n')
	if line = strings.TrimSpace(line); line != "" {
		return line
	}
	return def
}

func runInit(ctx context.Context, p configProfile, nonInteractive bool) error {
	if !nonInteractive {
		fmt.Println("\n  SeatSync Setup")
		fmt.Println("  ──────────────")
		fmt.Println()

		reader := bufio.NewReader(os.Stdin)
		p.APIURL = prompt(reader, "Booking API URL", defaultAPIURL)
		p.PushURL = prompt(reader, "Push server URL", defaultPushURL)
		p.Token = prompt(reader, "Session token", "")
	}

	if p.APIURL == "" {
		p.APIURL = defaultAPIURL
	}
	if p.PushURL == "" {
		p.PushURL = defaultPushURL
	}
	if p.LocalURL == "" {
		p.LocalURL = defaultLocalURL
	}

	if p.Token == "" {
		return fmt.Errorf("session token is required")
	}

	if !nonInteractive {
		fmt.Print("\n  Testing connection... ")
	}

	ver, err := testConnection(ctx, p.APIURL, p.Token)
	if err != nil {
		if !nonInteractive {
			fmt.Println("✗")
		}
		return fmt.Errorf("connection failed: %w", err)
	}

	if !nonInteractive {
		fmt.Printf("✓ Connected (v%s)\n", ver)
	}

	cfgPath, err := writeConfig(p)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if nonInteractive {
		fmt.Printf("Config saved to %s\n", cfgPath)
	} else {
		fmt.Printf("\n  ✓ Config saved to %s\n", cfgPath)
		fmt.Println()
		fmt.Println("  Next steps:")
		fmt.Println("    seatsync doctor      # Full diagnostic check")
		fmt.Println("    seatsync run         # Start the live session")
		fmt.Println("    seatsync --help      # See all commands")
		fmt.Println()
	}

	return nil
}

func testConnection(ctx context.Context, apiURL, token string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	h, err := client.New(apiURL, client.WithToken(token)).Health(ctx)
	if err != nil {
		return "", err
	}
	if h.Version == "" {
		return "unknown", nil
	}
	return h.Version, nil
}

// writeConfig stores p as the default profile, keeping any others.
func writeConfig(p configProfile) (string, error) {
	cfgPath, err := configPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return "", err
	}

	cfg := configFile{Profiles: map[string]configProfile{}}
	if _, existing, err := loadConfigFile(); err == nil && existing.Profiles != nil {
		cfg = *existing
	}

	name := flagProfile
	if name == "" {
		name = "default"
	}
	cfg.Profiles[name] = p
	if cfg.ActiveProfile == "" {
		cfg.ActiveProfile = name
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return "", err
	}

	return cfgPath, nil
}
