package config

// EnvPrefix prefixes every environment override: storage.backend is
// read from TG_STORAGE_BACKEND.
const EnvPrefix = "TG"

// Environment variables read outside of viper.
const (
	EnvDir  = "TG_DIR"  // Path to .taskgraph directory
	EnvJSON = "TG_JSON" // Enable JSON output ("1" or "true")
)
