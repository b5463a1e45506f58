package config

// Version is the seatsync binary version.
// Set at build time via: -ldflags "-X github.com/seatsync/seatsync/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
