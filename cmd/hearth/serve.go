package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/neboloop/hearth/internal/config"
	"github.com/neboloop/hearth/internal/lifecycle"
	"github.com/neboloop/hearth/internal/logging"
	"github.com/neboloop/hearth/internal/server"
	"github.com/neboloop/hearth/internal/svc"
)

type serveOptions struct {
	startServer bool
	quiet       bool
	port        int
}

// ServeCmd runs the web front end.
func ServeCmd() *cobra.Command {
	var o serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web chat front end",
		Long: `Serve the chat page and JSON API. The capability server is started from the
page (or right away with --start-server) and stopped on exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), o)
		},
	}
	cmd.Flags().BoolVar(&o.startServer, "start-server", false, "start the capability server immediately")
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "suppress request logging")
	cmd.Flags().IntVar(&o.port, "port", 0, "listen port (overrides config)")
	return cmd
}

func runServe(parent context.Context, o serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := *ServerConfig
	if o.port > 0 {
		cfg.Server.Port = o.port
	}
	printBanner(cfg)

	svcCtx := svc.NewServiceContext(cfg, Version)
	printStatus(svcCtx.InitAgent())
	svcCtx.Events.Emit(lifecycle.EventServerStarted, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, svcCtx, server.ServerOptions{Quiet: o.quiet})
	})
	if o.startServer {
		g.Go(func() error {
			printStatus(svcCtx.StartServer(gctx))
			return nil
		})
	}
	err := g.Wait()
	logging.Infof("[Server] shutting down (%s)", svcCtx)

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Capability.ShutdownTimeout+5*time.Second)
	defer cancel()
	svcCtx.Close(closeCtx)
	return err
}

func printBanner(cfg config.Config) {
	fmt.Println(color.CyanString("🚀 Starting Home Automation MCP Client..."))
	fmt.Printf("📁 MCP Server File: %s\n", cfg.Capability.File)
	fmt.Printf("🧩 MCP Server Executable: %s\n", cfg.Capability.Executable)
	if cfg.Provider.Kind == config.ProviderAzure {
		fmt.Println(color.YellowString("💡 Make sure your Azure OpenAI environment variables are set!"))
		for _, name := range []string{"AZURE_OPENAI_API_BASE", "AZURE_OPENAI_API_VERSION", "AZURE_OPENAI_API_DEPLOY"} {
			fmt.Printf("   - %s\n", name)
		}
	} else {
		fmt.Printf("🤖 Provider: %s (%s)\n", cfg.Provider.Kind, cfg.Provider.Model)
	}
}

// printStatus colours a status line by its leading marker.
func printStatus(s string) {
	switch {
	case strings.HasPrefix(s, "❌"):
		fmt.Println(color.RedString(s))
	case strings.HasPrefix(s, "✅"):
		fmt.Println(color.GreenString(s))
	case strings.HasPrefix(s, "🟡"), strings.HasPrefix(s, "🛑"):
		fmt.Println(color.YellowString(s))
	default:
		fmt.Println(s)
	}
}
