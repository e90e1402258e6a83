package capability

import (
	"net/http"

	"github.com/neboloop/hearth/internal/handler"
	"github.com/neboloop/hearth/internal/httputil"
	"github.com/neboloop/hearth/internal/svc"
	"github.com/neboloop/hearth/internal/types"
)

// StartServerHandler starts, or restarts, the capability server. Failures
// are reported in the status line, not as HTTP errors.
func StartServerHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := svcCtx.StartServer(r.Context())
		httputil.OkJSON(w, &types.ActionResponse{Status: status, State: handler.StatusOf(svcCtx)})
	}
}
