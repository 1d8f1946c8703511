package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// Authenticate resolves the access token of a connecting browser to a
// user id. Browsers cannot set headers on a WebSocket handshake, so the
// token travels in the access_token query parameter.
type Authenticate func(r *http.Request, token string) (int64, error)

// HandleWebSocket upgrades authenticated connections and runs them as hub
// clients.
func HandleWebSocket(hub *Hub, authenticate Authenticate, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticate(r, r.URL.Query().Get("access_token"))
		if err != nil {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logger.Warn("websocket accept", "error", err, "user_id", userID)
			return
		}

		NewClient(hub, conn, userID).Run(r.Context())
	}
}
