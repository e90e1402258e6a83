package handler

import (
	"net/http"

	"github.com/neboloop/hearth/internal/httputil"
	"github.com/neboloop/hearth/internal/svc"
	"github.com/neboloop/hearth/internal/types"
)

// StatusHandler reports agent, conversation and capability server state.
func StatusHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, StatusOf(svcCtx))
	}
}

// StatusOf converts the service snapshot to its wire form.
func StatusOf(svcCtx *svc.ServiceContext) types.StatusResponse {
	s := svcCtx.Snapshot()
	return types.StatusResponse{
		Message:   s.Status,
		Agent:     s.Agent,
		Provider:  s.Provider,
		SessionID: s.SessionID,
		Server:    string(s.Capability.State),
		PID:       s.Capability.PID,
		Tools:     s.Capability.Tools,
		LastError: s.Capability.LastError,
	}
}
