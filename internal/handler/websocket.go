package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"ainet/internal/chat"
	"ainet/internal/metrics"
	"ainet/internal/model"
)

// createUpgrader creates a WebSocket upgrader with the given allowed origins.
// Requests without an Origin header come from non-browser clients and are allowed.
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return allowedMap[origin]
		},
	}
}

// HandleChat handles GET /ws/chat/{peerId}/?token=...
// The handshake is authenticate → resolve peer → derive room → upgrade → join.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	peerParam := mux.Vars(r)["peerId"]
	token := r.URL.Query().Get("token")

	adm, err := h.Gate.Admit(r.Context(), token, peerParam)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrUnauthenticated):
			metrics.ConnectionsRejected.WithLabelValues("unauthenticated").Inc()
			writeError(w, http.StatusUnauthorized, "unauthenticated")
		case errors.Is(err, chat.ErrInvalidPeer):
			metrics.ConnectionsRejected.WithLabelValues("peer").Inc()
			writeError(w, http.StatusBadRequest, "invalid peer id")
		case errors.Is(err, model.ErrPeerNotFound):
			metrics.ConnectionsRejected.WithLabelValues("peer").Inc()
			writeError(w, http.StatusNotFound, "peer not found")
		default:
			h.Logger.Error().Err(err).Msg("chat handshake failed")
			metrics.ConnectionsRejected.WithLabelValues("error").Inc()
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		metrics.ConnectionsRejected.WithLabelValues("upgrade").Inc()
		h.Logger.Warn().Err(err).Str("room", adm.Room).Msg("websocket upgrade error")
		return
	}

	h.Chat.Serve(r.Context(), conn, adm)
}
