package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gambitchess/gambit/internal/api/middleware"
	"github.com/gambitchess/gambit/internal/api/request"
	"github.com/gambitchess/gambit/internal/api/response"
	"github.com/gambitchess/gambit/internal/model"
	"github.com/gambitchess/gambit/internal/relay"
	"github.com/gambitchess/gambit/internal/services/session"
)

// SessionHandler handles session lifecycle endpoints
type SessionHandler struct {
	sessions *session.Controller
	hub      *relay.Hub
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Controller, hub *relay.Hub) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		hub:      hub,
	}
}

// Create handles POST /api/v1/sessions
// The authenticated user becomes the white player.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	sess, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.SessionFromModel(sess))
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["id"])

	sess, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromModel(sess))
}

// Join handles POST /api/v1/sessions/{id}/join
// The authenticated user becomes the black player.
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	id := model.SessionID(mux.Vars(r)["id"])

	sess, err := h.sessions.Join(r.Context(), id, user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	// Status transition: push the new snapshot to any connected client
	h.hub.AnnounceState(sess)

	response.JSON(w, http.StatusOK, response.SessionFromModel(sess))
}

// Complete handles POST /api/v1/sessions/{id}/complete
// Applies an externally computed verdict (rules engine, arbiter).
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	id := model.SessionID(mux.Vars(r)["id"])

	var req request.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Reason == "" {
		WriteError(w, NewInvalidRequestError("reason is required"))
		return
	}

	sess, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	if !sess.HasPlayer(user.ID) {
		WriteError(w, model.ErrNotParticipant)
		return
	}

	verdict := model.Verdict{Winner: model.UserID(req.Winner), Reason: req.Reason}
	sess, err = h.sessions.Complete(r.Context(), id, verdict)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.hub.AnnounceState(sess)

	response.JSON(w, http.StatusOK, response.SessionFromModel(sess))
}
