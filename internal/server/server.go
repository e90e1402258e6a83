package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/neboloop/hearth/internal/handler"
	"github.com/neboloop/hearth/internal/handler/capability"
	"github.com/neboloop/hearth/internal/handler/chat"
	"github.com/neboloop/hearth/internal/logging"
	"github.com/neboloop/hearth/internal/realtime"
	"github.com/neboloop/hearth/internal/svc"
	"github.com/neboloop/hearth/internal/websocket"
)

//go:embed web/index.html
var indexHTML []byte

// ServerOptions holds optional settings for the server
type ServerOptions struct {
	Quiet bool // Suppress request logging and startup messages
}

// Run serves the web front end on svcCtx.Config.Addr() until ctx is
// cancelled, then shuts down gracefully.
func Run(ctx context.Context, svcCtx *svc.ServiceContext, opts ...ServerOptions) error {
	var o ServerOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	addr := svcCtx.Config.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	// ReadTimeout/WriteTimeout are omitted: they would cut hijacked WebSocket
	// connections. Keepalive is handled by ping/pong in realtime.
	httpServer := &http.Server{
		Handler:           NewRouter(ctx, svcCtx, o),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if !o.Quiet {
		fmt.Printf("Server ready at http://%s\n", ln.Addr())
	}
	logging.Infof("[Server] listening on %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if !o.Quiet {
		fmt.Println("\nShutting down server gracefully...")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// NewRouter builds the HTTP routes. The WebSocket hub lives until ctx ends.
func NewRouter(ctx context.Context, svcCtx *svc.ServiceContext, opts ServerOptions) http.Handler {
	r := chi.NewRouter()

	if !opts.Quiet {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(corsMiddleware())

	r.Get("/health", handler.HealthCheckHandler(svcCtx))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handler.StatusHandler(svcCtx))

		r.Post("/server/start", capability.StartServerHandler(svcCtx))
		r.Post("/server/stop", capability.StopServerHandler(svcCtx))
		r.Get("/devices/status", capability.DeviceStatusHandler(svcCtx))
		r.Get("/devices/prompt", capability.StatusPromptHandler(svcCtx))

		r.Post("/chat", chat.SendMessageHandler(svcCtx))
		r.Post("/chat/reset", chat.ResetChatHandler(svcCtx))
		r.Get("/chat/history", chat.GetHistoryHandler(svcCtx))
	})

	hub := realtime.NewHub()
	go hub.Run(ctx)
	chatCtx := realtime.NewChatContext(svcCtx, hub)
	r.Get("/ws", websocket.Handler(hub, chatCtx.Handle))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(indexHTML)
	})
	return r
}

// corsMiddleware only lets loopback pages call the API from another port.
func corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if u, err := url.Parse(origin); err == nil && websocket.IsLoopbackHost(u.Hostname()) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
