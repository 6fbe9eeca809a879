package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gambitchess/gambit/internal/model"
)

// SessionManager is the slice of the session controller the hub depends on
type SessionManager interface {
	Get(ctx context.Context, id model.SessionID) (*model.GameSession, error)
	SubmitMove(ctx context.Context, id model.SessionID, sender model.UserID, from, to, piece string) (*model.GameSession, error)
	Resign(ctx context.Context, id model.SessionID, player model.UserID) (*model.GameSession, error)
}

// Config holds hub behavior settings
type Config struct {
	// ReplayOnReconnect replays the full stored move log to a connection
	// when it registers, so a reconnecting client catches up from the
	// system of record
	ReplayOnReconnect bool

	// PongWait is how long a connection may go without answering a
	// liveness ping before it is torn down and unregistered
	PongWait time.Duration
}

// DefaultConfig returns default hub configuration
func DefaultConfig() Config {
	return Config{
		ReplayOnReconnect: true,
		PongWait:          60 * time.Second,
	}
}

// Hub maps each session to its currently connected clients and forwards
// frames between them. It holds no message history: a frame relayed to a
// session with no other participant connected is dropped, and the stored
// move log is the only system of record.
type Hub struct {
	sessions SessionManager
	cfg      Config
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[model.SessionID]map[model.UserID]*Client
}

// NewHub creates a new relay hub
func NewHub(sessions SessionManager, cfg Config, logger *slog.Logger) *Hub {
	return &Hub{
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "relay")),
		clients:  make(map[model.SessionID]map[model.UserID]*Client),
	}
}

// Register adds a client for its (session, user) key. Registering over an
// existing entry replaces it and shuts the old connection down, which is how
// reconnects are handled. The new client receives a state snapshot and,
// when replay is enabled, the stored move log.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	session, err := h.sessions.Get(ctx, c.sessionID)
	if err != nil {
		return err
	}
	if !session.HasPlayer(c.userID) {
		return model.ErrNotParticipant
	}

	h.mu.Lock()
	byUser, ok := h.clients[c.sessionID]
	if !ok {
		byUser = make(map[model.UserID]*Client)
		h.clients[c.sessionID] = byUser
	}
	old := byUser[c.userID]
	byUser[c.userID] = c
	h.mu.Unlock()

	if old != nil && old != c {
		old.shutdown()
	}

	h.logger.Info("client registered",
		slog.String("session_id", string(c.sessionID)),
		slog.String("user_id", string(c.userID)),
	)

	c.enqueue(StateFrame(session))
	if h.cfg.ReplayOnReconnect {
		for _, move := range session.Moves {
			c.enqueue(MoveFrame(move))
		}
	}
	return nil
}

// Unregister removes the client's registration. Idempotent: removing an
// absent entry is a no-op, and a stale client never evicts the fresh
// connection that replaced it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	byUser, ok := h.clients[c.sessionID]
	if ok && byUser[c.userID] == c {
		delete(byUser, c.userID)
		if len(byUser) == 0 {
			delete(h.clients, c.sessionID)
		}
		ok = true
	} else {
		ok = false
	}
	h.mu.Unlock()

	if ok {
		h.logger.Info("client unregistered",
			slog.String("session_id", string(c.sessionID)),
			slog.String("user_id", string(c.userID)),
		)
	}
}

// ClientCount returns the number of connected clients for a session
func (h *Hub) ClientCount(id model.SessionID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[id])
}

// peers returns every registered client for the session except the sender
func (h *Hub) peers(id model.SessionID, sender model.UserID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Client
	for user, c := range h.clients[id] {
		if user != sender {
			out = append(out, c)
		}
	}
	return out
}

// Relay forwards raw frame bytes to every other client registered under the
// session. Absent peers are a silent no-op.
func (h *Hub) Relay(id model.SessionID, sender model.UserID, data []byte) {
	for _, peer := range h.peers(id, sender) {
		peer.enqueue(data)
	}
}

// broadcast sends frame bytes to every client registered under the session
func (h *Hub) broadcast(id model.SessionID, data []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients[id]))
	for _, c := range h.clients[id] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(data)
	}
}

// HandleFrame processes one inbound frame from a client. Called from the
// client's read loop, so frames from one sender are handled in arrival order
// and enqueued to each destination in that same order.
func (h *Hub) HandleFrame(ctx context.Context, c *Client, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.enqueue(ErrorFrame("BAD_FRAME", "invalid frame"))
		return
	}

	switch frame.Type {
	case FramePing:
		c.enqueue(marshalFrame(FramePong, nil))

	case FrameMove:
		var move MovePayload
		if err := json.Unmarshal(frame.Payload, &move); err != nil {
			c.enqueue(ErrorFrame("BAD_FRAME", "invalid move payload"))
			return
		}

		// The store append is the serialization point; only a persisted
		// move is forwarded to the peer.
		if _, err := h.sessions.SubmitMove(ctx, c.sessionID, c.userID, move.From, move.To, move.Piece); err != nil {
			c.enqueue(ErrorFrame(moveErrorCode(err), err.Error()))
			return
		}
		h.Relay(c.sessionID, c.userID, data)

	case FrameResign:
		// Forward the signal first, then complete and announce the
		// resulting status transition to both sides
		h.Relay(c.sessionID, c.userID, data)
		session, err := h.sessions.Resign(ctx, c.sessionID, c.userID)
		if err != nil {
			c.enqueue(ErrorFrame(moveErrorCode(err), err.Error()))
			return
		}
		h.broadcast(c.sessionID, StateFrame(session))

	default:
		c.enqueue(ErrorFrame("UNKNOWN_TYPE", "unknown frame type: "+frame.Type))
	}
}

// AnnounceState pushes a state snapshot to every client of the session.
// Used by the API layer on status transitions (join, external completion).
func (h *Hub) AnnounceState(session *model.GameSession) {
	h.broadcast(session.ID, StateFrame(session))
}

func moveErrorCode(err error) string {
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, model.ErrSessionNotActive):
		return "SESSION_NOT_ACTIVE"
	case errors.Is(err, model.ErrNotParticipant):
		return "NOT_PARTICIPANT"
	case errors.Is(err, model.ErrConflictingVerdict):
		return "CONFLICTING_VERDICT"
	case errors.Is(err, model.ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
