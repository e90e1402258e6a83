package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/neboloop/hearth/internal/agent/ai"
	"github.com/neboloop/hearth/internal/svc"
)

// ChatCmd creates the terminal chat command
func ChatCmd() *cobra.Command {
	var noServer bool

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Chat with the home automation agent in the terminal",
		Long: `Send a message to the agent and stream its reply. Without a prompt an
interactive session starts; type /help for the session commands.

Examples:
  hearth chat "Turn on the living room light at 60%"
  hearth chat --no-server "What can you do?"
  hearth chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), args, !noServer)
		},
	}
	cmd.Flags().BoolVar(&noServer, "no-server", false, "do not start the capability server (agent runs without tools)")
	return cmd
}

const chatHelp = `Commands:
  /start     start (or restart) the capability server
  /stop      stop the capability server
  /reset     start a new conversation
  /status    show agent and server state
  /tools     list the bound tools
  /devices   show the device status resource
  /report    ask the agent for a status report using the server's prompt
  /quit      exit`

// turnPrinter streams text to the terminal and remembers whether anything
// was printed for the current turn.
type turnPrinter struct {
	printed bool
}

func (p *turnPrinter) observe(ev ai.StreamEvent) {
	switch ev.Type {
	case ai.EventTypeText:
		if !p.printed {
			fmt.Print(color.GreenString("assistant> "))
		}
		fmt.Print(ev.Text)
		p.printed = true
	case ai.EventTypeToolCall:
		if ev.ToolCall == nil {
			return
		}
		if p.printed {
			fmt.Println()
			p.printed = false
		}
		fmt.Println(color.HiBlackString("🔧 %s %s", ev.ToolCall.Name, string(ev.ToolCall.Input)))
	}
}

func (p *turnPrinter) finish(reply string) {
	if p.printed {
		fmt.Println()
		if strings.HasPrefix(reply, "❌") {
			printStatus(reply)
		}
	} else {
		fmt.Println(color.GreenString("assistant> ") + reply)
	}
	p.printed = false
}

func runChat(parent context.Context, args []string, startServer bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcCtx := svc.NewServiceContext(*ServerConfig, Version)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), ServerConfig.Capability.ShutdownTimeout+5*time.Second)
		defer cancel()
		svcCtx.Close(closeCtx)
	}()

	printer := &turnPrinter{}
	svcCtx.OnStream(printer.observe)

	printStatus(svcCtx.InitAgent())
	if startServer {
		printStatus(svcCtx.StartServer(ctx))
	}

	if len(args) > 0 {
		printer.finish(svcCtx.Send(ctx, strings.Join(args, " ")))
		return nil
	}

	fmt.Println(color.CyanString("🏠 Home Automation MCP Client"))
	fmt.Println("Ask me about your smart home devices... (/help for commands)")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print(color.BlueString("you> "))
		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Println()
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runChatCommand(ctx, svcCtx, printer, line); quit {
				return nil
			}
			continue
		}
		printer.finish(svcCtx.Send(ctx, line))
	}
}

// runChatCommand handles a slash command and reports whether to exit.
func runChatCommand(ctx context.Context, svcCtx *svc.ServiceContext, printer *turnPrinter, line string) bool {
	switch strings.Fields(line)[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Println(chatHelp)
	case "/start":
		printStatus(svcCtx.StartServer(ctx))
	case "/stop":
		printStatus(svcCtx.StopServer(ctx))
	case "/reset":
		printStatus(svcCtx.Reset())
	case "/status":
		s := svcCtx.Snapshot()
		fmt.Println(s.Status)
		fmt.Printf("agent: %t  provider: %s  session: %s\n", s.Agent, s.Provider, orNone(s.SessionID))
		fmt.Printf("server: %s  pid: %d  tools: %d\n", s.Capability.State, s.Capability.PID, len(s.Capability.Tools))
		if s.Capability.LastError != "" {
			fmt.Println(color.RedString("last error: %s", s.Capability.LastError))
		}
	case "/tools":
		b := svcCtx.Binder.Current()
		if !b.HasTools() {
			fmt.Println("No tools bound. Use /start to start the capability server.")
			break
		}
		for _, t := range b.Tools {
			fmt.Printf("  %s  %s\n", color.CyanString(t.Name), t.Description)
		}
	case "/devices":
		doc, err := svcCtx.DeviceStatus(ctx)
		if err != nil {
			printStatus("❌ " + err.Error())
			break
		}
		fmt.Println(doc)
	case "/report":
		prompt, err := svcCtx.StatusReportPrompt(ctx)
		if err != nil {
			printStatus("❌ " + err.Error())
			break
		}
		printer.finish(svcCtx.Send(ctx, prompt))
	default:
		fmt.Printf("Unknown command %s\n%s\n", line, chatHelp)
	}
	return false
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
