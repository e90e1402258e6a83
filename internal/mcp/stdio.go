package mcp

import (
	"context"
	"fmt"

	"github.com/neboloop/hearth/internal/home"
	"github.com/neboloop/hearth/internal/logging"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServeStdio loads the device seed file and serves the capability server on
// stdin/stdout until the client disconnects or ctx is cancelled. Stdout
// carries the protocol stream only; diagnostics go to stderr.
func ServeStdio(ctx context.Context, seedPath, version string) error {
	devices, err := home.LoadDevices(seedPath)
	if err != nil {
		return err
	}
	server := NewServer(home.New(devices), version)

	logging.Infof("[Devices] serving %s on stdio (seed %s)", ServerName, seedPath)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("capability server: %w", err)
	}
	return nil
}
