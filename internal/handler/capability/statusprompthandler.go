package capability

import (
	"errors"
	"net/http"

	hearthmcp "github.com/neboloop/hearth/internal/mcp"
	"github.com/neboloop/hearth/internal/httputil"
	mcpclient "github.com/neboloop/hearth/internal/mcp/client"
	"github.com/neboloop/hearth/internal/svc"
	"github.com/neboloop/hearth/internal/types"
)

func StatusPromptHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, err := svcCtx.StatusReportPrompt(r.Context())
		if errors.Is(err, mcpclient.ErrNotRunning) {
			httputil.Unavailable(w, err.Error())
			return
		}
		if err != nil {
			httputil.ErrorWithCode(w, http.StatusBadGateway, err.Error())
			return
		}
		httputil.OkJSON(w, &types.PromptResponse{Name: hearthmcp.StatusReportPrompt, Text: text})
	}
}
