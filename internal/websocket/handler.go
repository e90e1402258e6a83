package websocket

import (
	"net"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/neboloop/hearth/internal/logging"
	"github.com/neboloop/hearth/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameHostOrLocal,
}

// Handler upgrades browser connections and attaches them to hub. Frames are
// dispatched to handle.
func Handler(hub *realtime.Hub, handle realtime.MessageHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := r.URL.Query().Get("clientId")
		if clientID == "" {
			clientID = "client-" + uuid.New().String()[:8]
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Errorf("WebSocket upgrade error: %v", err)
			return
		}
		logging.Debugf("Serving WebSocket for clientID: %s", clientID)
		realtime.ServeWS(hub, conn, clientID, handle)
	}
}

// sameHostOrLocal accepts requests without an Origin, from the page's own
// host, or from a loopback host.
func sameHostOrLocal(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	return IsLoopbackHost(u.Hostname())
}

// IsLoopbackHost reports whether host names this machine.
func IsLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
