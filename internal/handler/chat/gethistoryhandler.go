package chat

import (
	"net/http"
	"time"

	"github.com/neboloop/hearth/internal/httputil"
	"github.com/neboloop/hearth/internal/markdown"
	"github.com/neboloop/hearth/internal/svc"
	"github.com/neboloop/hearth/internal/types"
)

// GetHistoryHandler returns the exchanges of the current conversation.
func GetHistoryHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history := svcCtx.Conversation.History()
		resp := types.HistoryResponse{
			SessionID: svcCtx.Conversation.ID(),
			Exchanges: make([]types.Exchange, 0, len(history)),
		}
		for _, ex := range history {
			resp.Exchanges = append(resp.Exchanges, types.Exchange{
				User:      ex.User,
				Assistant: ex.Assistant,
				HTML:      markdown.Render(ex.Assistant),
				At:        ex.At.Format(time.RFC3339),
			})
		}
		httputil.OkJSON(w, &resp)
	}
}
