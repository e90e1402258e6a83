// Command hearth-devices is the home automation capability server. It speaks
// MCP on stdin/stdout and takes the device seed file as its only argument.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neboloop/hearth/internal/logging"
	"github.com/neboloop/hearth/internal/mcp"
)

var version = "dev"

func main() {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "hearth-devices <devices.yaml>",
		Short:         "Home automation MCP server over stdio",
		Args:          cobra.ExactArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(os.Stderr, logLevel)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return mcp.ServeStdio(ctx, args[0], version)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", os.Getenv("HEARTH_LOG_LEVEL"), "log level (debug, info, warn, error)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hearth-devices:", err)
		os.Exit(1)
	}
}
