package cli

import "github.com/neboloop/hearth/internal/config"

// Shared CLI flags (used across multiple command files)
var (
	cfgFile  string
	logLevel string
	verbose  bool
)

// ServerConfig holds the loaded configuration (set by main, replaced by --config)
var ServerConfig *config.Config

// Version is the build version, set by main.
var Version = "dev"
