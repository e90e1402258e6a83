package capability

import (
	"net/http"

	"github.com/neboloop/hearth/internal/handler"
	"github.com/neboloop/hearth/internal/httputil"
	"github.com/neboloop/hearth/internal/svc"
	"github.com/neboloop/hearth/internal/types"
)

func StopServerHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := svcCtx.StopServer(r.Context())
		httputil.OkJSON(w, &types.ActionResponse{Status: status, State: handler.StatusOf(svcCtx)})
	}
}
