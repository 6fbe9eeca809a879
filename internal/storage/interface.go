package storage

import (
	"context"

	"github.com/gambitchess/gambit/internal/model"
)

// Store defines the interface for data persistence.
// Both backends expose identical semantics; the session controller is
// backend-agnostic. Session mutators are atomic per session: two concurrent
// JoinSession calls on the same waiting session resolve to exactly one winner.
type Store interface {
	// User operations
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)

	// Credentials operations
	SaveCredentials(ctx context.Context, creds *model.Credentials) error
	GetCredentialsByUsername(ctx context.Context, username string) (*model.Credentials, error)

	// Session operations
	//
	// CreateSession allocates a fresh SessionID and initializes the record
	// with status waiting, no black player and an empty move log.
	CreateSession(ctx context.Context, white model.UserID) (*model.GameSession, error)
	GetSession(ctx context.Context, id model.SessionID) (*model.GameSession, error)
	// JoinSession atomically sets the black player and moves the session to
	// in_progress. Fails with model.ErrSessionFull if a black player is
	// already set, model.ErrSelfJoin if the joiner created the session.
	JoinSession(ctx context.Context, id model.SessionID, player model.UserID) (*model.GameSession, error)
	// AppendMove appends to the move log. Fails with
	// model.ErrSessionNotActive unless the session is in_progress.
	AppendMove(ctx context.Context, id model.SessionID, move model.MoveRecord) (*model.GameSession, error)
	// CompleteSession records the verdict and moves the session to
	// completed. Idempotent for an equal verdict; a differing verdict on a
	// completed session fails with model.ErrConflictingVerdict.
	CompleteSession(ctx context.Context, id model.SessionID, verdict model.Verdict) (*model.GameSession, error)
	DeleteSession(ctx context.Context, id model.SessionID) error
}
