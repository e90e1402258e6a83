package chat

import (
	"net/http"
	"strings"

	"github.com/neboloop/hearth/internal/httputil"
	"github.com/neboloop/hearth/internal/markdown"
	"github.com/neboloop/hearth/internal/svc"
	"github.com/neboloop/hearth/internal/types"
)

// SendMessageHandler runs one turn of the single conversation and returns
// the reply once the turn completes.
func SendMessageHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SendMessageRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		text := strings.TrimSpace(req.Text)
		if text == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "text is required")
			return
		}

		reply := svcCtx.Send(r.Context(), text)
		httputil.OkJSON(w, &types.SendMessageResponse{
			Reply:     reply,
			HTML:      markdown.Render(reply),
			SessionID: svcCtx.Conversation.ID(),
		})
	}
}
