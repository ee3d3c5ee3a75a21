package handler

import (
	"context"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ainet/internal/chat"
	"ainet/internal/config"
	"ainet/internal/model"
)

// Store is the read side used by the REST endpoints
type Store interface {
	Ping(ctx context.Context) error
	History(ctx context.Context, a, b model.Identity) ([]model.Message, error)
	Discussions(ctx context.Context, self model.Identity) ([]model.Discussion, error)
	MarkRead(ctx context.Context, reader, peer model.Identity) (int64, error)
}

// Handler holds application dependencies
type Handler struct {
	Config config.Config
	Store  Store
	Auth   chat.Authenticator
	Gate   *chat.Gate
	Chat   *chat.Service
	Logger zerolog.Logger

	upgrader websocket.Upgrader
}

// New creates a new Handler with the given dependencies
func New(cfg config.Config, st Store, auth chat.Authenticator, gate *chat.Gate, svc *chat.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		Config:   cfg,
		Store:    st,
		Auth:     auth,
		Gate:     gate,
		Chat:     svc,
		Logger:   logger.With().Str("component", "http").Logger(),
		upgrader: createUpgrader(cfg.AllowedOrigins),
	}
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests, recordMetrics)

	// WebSocket (末尾スラッシュあり・なし両対応)
	r.HandleFunc("/ws/chat/{peerId}/", h.HandleChat).Methods("GET")
	r.HandleFunc("/ws/chat/{peerId}", h.HandleChat).Methods("GET")

	// REST API
	api := r.PathPrefix("/chats").Subrouter()
	api.Use(h.requireAuth)
	api.HandleFunc("/{peerId:[0-9]+}/read/", h.MarkRead).Methods("POST")
	api.HandleFunc("/{senderId:[0-9]+}/{receiverId:[0-9]+}/", h.GetTranscript).Methods("GET")
	api.HandleFunc("/{userId:[0-9]+}/", h.GetDiscussions).Methods("GET")

	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}
