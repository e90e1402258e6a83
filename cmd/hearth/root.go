package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neboloop/hearth/internal/config"
	"github.com/neboloop/hearth/internal/logging"
)

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd(c *config.Config, version string) *cobra.Command {
	ServerConfig = c
	Version = version

	rootCmd := &cobra.Command{
		Use:   "hearth",
		Short: "Hearth - home automation agent with dynamic MCP tools",
		Long: `Hearth is a chat agent that gains smart home tools at runtime by starting
an MCP capability server (hearth-devices) as a child process.

Just type 'hearth' to start the web front end.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveOptions{})
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: embedded etc/hearth.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level debug)")

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(ChatCmd())
	rootCmd.AddCommand(VersionCmd())

	return rootCmd
}

// loadConfig applies --config and the logging flags.
func loadConfig() error {
	if cfgFile != "" {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		ServerConfig = &c
	}
	if ServerConfig == nil {
		return fmt.Errorf("no configuration loaded")
	}

	level := ServerConfig.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	if verbose {
		level = "debug"
	}
	logging.Setup(os.Stderr, level)
	return nil
}
