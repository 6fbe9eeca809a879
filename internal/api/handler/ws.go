package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/gambitchess/gambit/internal/api/middleware"
	"github.com/gambitchess/gambit/internal/model"
	"github.com/gambitchess/gambit/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser frontend is served from a different origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades connections onto the real-time relay channel
type WSHandler struct {
	hub    *relay.Hub
	logger *slog.Logger
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(hub *relay.Hub, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: logger.With(slog.String("component", "ws")),
	}
}

// Connect handles GET /api/v1/sessions/{id}/ws
// One connection per (session, user); a second connection for the same pair
// replaces the first.
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	id := model.SessionID(mux.Vars(r)["id"])

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := relay.NewClient(h.hub, conn, id, user.ID, h.logger)
	if err := h.hub.Register(r.Context(), client); err != nil {
		h.logger.Warn("websocket registration rejected",
			slog.String("session_id", string(id)),
			slog.String("user_id", string(user.ID)),
			slog.Any("error", err),
		)
		_ = conn.WriteMessage(websocket.TextMessage, relay.ErrorFrame("NOT_REGISTERED", err.Error()))
		_ = conn.Close()
		return
	}

	// Blocks until the connection drops
	client.Run(r.Context())
}
