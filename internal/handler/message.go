package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ainet/internal/model"
)

// GetTranscript handles GET /chats/{senderId}/{receiverId}/
// The caller must be one of the two participants.
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	vars := mux.Vars(r)

	senderID, err1 := strconv.ParseInt(vars["senderId"], 10, 64)
	receiverID, err2 := strconv.ParseInt(vars["receiverId"], 10, 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "invalid participant id")
		return
	}
	if user.ID != senderID && user.ID != receiverID {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	messages, err := h.Store.History(r.Context(), model.UserRef(senderID), model.UserRef(receiverID))
	if err != nil {
		h.Logger.Error().Err(err).Int64("sender_id", senderID).Int64("receiver_id", receiverID).Msg("history query failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// GetDiscussions handles GET /chats/{userId}/
func (h *Handler) GetDiscussions(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	userID, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if userID != user.ID {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	discussions, err := h.Store.Discussions(r.Context(), user.Ref())
	if err != nil {
		h.Logger.Error().Err(err).Int64("user_id", userID).Msg("discussions query failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, discussions)
}

// MarkRead handles POST /chats/{peerId}/read/?kind=user|agent
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	peerID, err := strconv.ParseInt(mux.Vars(r)["peerId"], 10, 64)
	if err != nil || peerID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid peer id")
		return
	}

	kind := model.KindUser
	if k := r.URL.Query().Get("kind"); k != "" {
		if kind, err = model.ParseKind(k); err != nil {
			writeError(w, http.StatusBadRequest, "kind must be user or agent")
			return
		}
	}

	updated, err := h.Store.MarkRead(r.Context(), user.Ref(), model.Identity{Kind: kind, ID: peerID})
	if err != nil {
		h.Logger.Error().Err(err).Int64("peer_id", peerID).Msg("mark read failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.Logger.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
