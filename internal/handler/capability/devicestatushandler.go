package capability

import (
	"errors"
	"net/http"

	"github.com/neboloop/hearth/internal/httputil"
	"github.com/neboloop/hearth/internal/logging"
	"github.com/neboloop/hearth/internal/markdown"
	mcpclient "github.com/neboloop/hearth/internal/mcp/client"
	"github.com/neboloop/hearth/internal/svc"
	"github.com/neboloop/hearth/internal/types"
)

// DeviceStatusHandler reads the device status resource from the running
// capability server.
func DeviceStatusHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := svcCtx.DeviceStatus(r.Context())
		if errors.Is(err, mcpclient.ErrNotRunning) {
			httputil.Unavailable(w, err.Error())
			return
		}
		if err != nil {
			logging.Errorf("Failed to read device status: %v", err)
			httputil.ErrorWithCode(w, http.StatusBadGateway, err.Error())
			return
		}
		httputil.OkJSON(w, &types.DeviceStatusResponse{JSON: doc, HTML: markdown.RenderJSON(doc)})
	}
}
