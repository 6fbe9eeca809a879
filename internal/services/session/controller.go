package session

import (
	"context"
	"log/slog"

	"github.com/gambitchess/gambit/internal/dependencies/clock"
	"github.com/gambitchess/gambit/internal/model"
	"github.com/gambitchess/gambit/internal/storage"
)

// VerdictResignation is recorded when a player resigns
const VerdictResignation = "resignation"

// Controller owns the session state machine. It is the only caller of the
// store's session mutators, so the lifecycle invariants are enforced in
// exactly one place.
type Controller struct {
	store  storage.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewController creates a new session controller
func NewController(store storage.Store, clk clock.Clock, logger *slog.Logger) *Controller {
	return &Controller{
		store:  store,
		clock:  clk,
		logger: logger.With(slog.String("component", "session")),
	}
}

// Create starts a new session with the given user as the white player
func (c *Controller) Create(ctx context.Context, white model.UserID) (*model.GameSession, error) {
	session, err := c.store.CreateSession(ctx, white)
	if err != nil {
		return nil, err
	}

	c.logger.Info("session created",
		slog.String("session_id", string(session.ID)),
		slog.String("white_player", string(white)),
	)

	return session, nil
}

// Get retrieves a session by ID
func (c *Controller) Get(ctx context.Context, id model.SessionID) (*model.GameSession, error) {
	return c.store.GetSession(ctx, id)
}

// Join adds a second player as black and starts the session. The store's
// check-and-set decides the winner of concurrent joins.
func (c *Controller) Join(ctx context.Context, id model.SessionID, player model.UserID) (*model.GameSession, error) {
	session, err := c.store.JoinSession(ctx, id, player)
	if err != nil {
		return nil, err
	}

	c.logger.Info("session joined",
		slog.String("session_id", string(id)),
		slog.String("black_player", string(player)),
	)

	return session, nil
}

// SubmitMove appends a move from one of the session's players.
// The sender must be a participant; legality of the move itself is not
// checked here.
func (c *Controller) SubmitMove(ctx context.Context, id model.SessionID, sender model.UserID, from, to, piece string) (*model.GameSession, error) {
	session, err := c.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.HasPlayer(sender) {
		return nil, model.ErrNotParticipant
	}

	move := model.MoveRecord{
		Player:   sender,
		From:     from,
		To:       to,
		Piece:    piece,
		PlayedAt: c.clock.Now(),
	}

	// The store re-checks status inside its critical section, so a
	// concurrent completion between the read above and this append fails
	// cleanly instead of extending a finished game.
	return c.store.AppendMove(ctx, id, move)
}

// Resign completes the session in favor of the resigner's opponent
func (c *Controller) Resign(ctx context.Context, id model.SessionID, player model.UserID) (*model.GameSession, error) {
	session, err := c.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.HasPlayer(player) {
		return nil, model.ErrNotParticipant
	}

	verdict := model.Verdict{
		Winner: session.Opponent(player),
		Reason: VerdictResignation,
	}
	return c.Complete(ctx, id, verdict)
}

// Complete applies a terminal verdict to the session. Repeating an equal
// verdict is a no-op success; a differing verdict fails and the first stands.
func (c *Controller) Complete(ctx context.Context, id model.SessionID, verdict model.Verdict) (*model.GameSession, error) {
	session, err := c.store.CompleteSession(ctx, id, verdict)
	if err != nil {
		return nil, err
	}

	c.logger.Info("session completed",
		slog.String("session_id", string(id)),
		slog.String("winner", string(verdict.Winner)),
		slog.String("reason", verdict.Reason),
	)

	return session, nil
}

// ControllerInterface is the session manager surface used by other components
type ControllerInterface interface {
	Create(ctx context.Context, white model.UserID) (*model.GameSession, error)
	Get(ctx context.Context, id model.SessionID) (*model.GameSession, error)
	Join(ctx context.Context, id model.SessionID, player model.UserID) (*model.GameSession, error)
	SubmitMove(ctx context.Context, id model.SessionID, sender model.UserID, from, to, piece string) (*model.GameSession, error)
	Resign(ctx context.Context, id model.SessionID, player model.UserID) (*model.GameSession, error)
	Complete(ctx context.Context, id model.SessionID, verdict model.Verdict) (*model.GameSession, error)
}

var _ ControllerInterface = (*Controller)(nil)
