package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/seatsync/seatsync/internal/config"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

const defaultLocalURL = "http://127.0.0.1:3031"

var (
	local          *localAPI
	flagLocalURL   string
	flagLocalToken string
	flagProfile    string
	flagFmt        string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("seatsync version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}
	return fmt.Sprintf("seatsync version %s-dev", config.Version)
}

// configFile is ~/.seatsync/config.yaml.
type configFile struct {
	Profiles      map[string]configProfile `yaml:"profiles"`
	ActiveProfile string                   `yaml:"active_profile"`
}

// configProfile holds one booking account and the local API it is served on.
type configProfile struct {
	APIURL     string `yaml:"api_url"`
	PushURL    string `yaml:"push_url"`
	Token      string `yaml:"token"`
	LocalURL   string `yaml:"local_url"`
	LocalToken string `yaml:"local_token"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "seatsync",
		Short:   "SeatSync: live seat maps, seat locks and offline booking sync",
		Version: versionString(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveConfig()
			local = newLocalAPI(flagLocalURL, flagLocalToken)
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagLocalURL, "local-url", defaultLocalURL, "Local state API URL (env: SEATSYNC_LOCAL_URL)")
	rootCmd.PersistentFlags().StringVar(&flagLocalToken, "local-token", "", "Local state API token (env: LOCAL_API_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "Config profile (default: active_profile)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "table", "Output format: json|table|quiet")

	initCmd := newInitCmd()
	initCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {} // no local API needed

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newReconnectCmd())
	rootCmd.AddCommand(newDisconnectCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newSeatsCmd())
	rootCmd.AddCommand(newLockCmd())
	rootCmd.AddCommand(newReleaseCmd())
	rootCmd.AddCommand(newQueueCmd())
	rootCmd.AddCommand(newNotificationsCmd())
	rootCmd.AddCommand(newPrefsCmd())
	rootCmd.AddCommand(newRoomsCmd())

	return rootCmd
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".seatsync", "config.yaml"), nil
}

// loadConfigFile reads the profile file. A missing file is reported as an
// error wrapping fs.ErrNotExist.
func loadConfigFile() (string, *configFile, error) {
	path, err := configPath()
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return path, nil, err
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return path, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return path, &cfg, nil
}

// profile returns the selected profile: --profile, then active_profile,
// then "default".
func (f *configFile) profile(name string) (configProfile, bool) {
	if f == nil || f.Profiles == nil {
		return configProfile{}, false
	}
	if name == "" {
		name = f.ActiveProfile
	}
	if name == "" {
		name = "default"
	}
	p, ok := f.Profiles[name]
	return p, ok
}

func profileName() string {
	if flagProfile != "" {
		return flagProfile
	}
	if _, cfg, err := loadConfigFile(); err == nil && cfg.ActiveProfile != "" {
		return cfg.ActiveProfile
	}
	return "default"
}

func resolveConfig() {
	// Flag takes precedence, then env, then config file.
	if flagLocalURL == defaultLocalURL {
		if v := os.Getenv("SEATSYNC_LOCAL_URL"); v != "" {
			flagLocalURL = v
		}
	}
	if flagLocalToken == "" {
		flagLocalToken = os.Getenv("LOCAL_API_TOKEN")
	}

	_, cfg, err := loadConfigFile()
	if err != nil {
		return
	}
	p, ok := cfg.profile(flagProfile)
	if !ok {
		return
	}
	if flagLocalURL == defaultLocalURL && p.LocalURL != "" {
		flagLocalURL = p.LocalURL
	}
	if flagLocalToken == "" && p.LocalToken != "" {
		flagLocalToken = p.LocalToken
	}
}

// applyProfileEnv exports the selected profile as the environment that
// config.Load reads. Variables already set win.
func applyProfileEnv() error {
	_, cfg, err := loadConfigFile()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	p, ok := cfg.profile(flagProfile)
	if !ok {
		if flagProfile != "" {
			return fmt.Errorf("profile %q not found", flagProfile)
		}
		return nil
	}

	for key, val := range map[string]string{
		"SEATSYNC_API_URL":  p.APIURL,
		"SEATSYNC_PUSH_URL": p.PushURL,
		"SEATSYNC_TOKEN":    p.Token,
		"LOCAL_API_TOKEN":   p.LocalToken,
	} {
		if val == "" {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return err
		}
	}
	return nil
}
