package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/gambitchess/gambit/internal/dependencies/clock"
	"github.com/gambitchess/gambit/internal/model"
	"github.com/gambitchess/gambit/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// A single mutex serializes every session mutation, so the join
// check-and-set and verdict recording are critical sections.
type Storage struct {
	mu sync.RWMutex

	users         map[model.UserID]*model.User
	credentials   map[model.UserID]*model.Credentials
	usernameIndex map[string]model.UserID
	sessions      map[model.SessionID]*model.GameSession
	sessionSeq    uint64

	clock clock.Clock
}

// New creates a new in-memory storage instance
func New(clk clock.Clock) *Storage {
	return &Storage{
		users:         make(map[model.UserID]*model.User),
		credentials:   make(map[model.UserID]*model.Credentials),
		usernameIndex: make(map[string]model.UserID),
		sessions:      make(map[model.SessionID]*model.GameSession),
		clock:         clk,
	}
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[user.ID] = &u
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// Credentials operations

func (s *Storage) SaveCredentials(ctx context.Context, creds *model.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *creds
	s.credentials[creds.UserID] = &c
	s.usernameIndex[creds.Username] = creds.UserID
	return nil
}

func (s *Storage) GetCredentialsByUsername(ctx context.Context, username string) (*model.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	creds, ok := s.credentials[userID]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	c := *creds
	return &c, nil
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, white model.UserID) (*model.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionSeq++
	now := s.clock.Now()
	session := &model.GameSession{
		ID:          model.SessionID(fmt.Sprintf("g%06d", s.sessionSeq)),
		WhitePlayer: white,
		Status:      model.StatusWaiting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.sessions[session.ID] = session
	return session.Clone(), nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Storage) JoinSession(ctx context.Context, id model.SessionID, player model.UserID) (*model.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	if session.BlackPlayer != nil {
		return nil, model.ErrSessionFull
	}
	if session.WhitePlayer == player {
		return nil, model.ErrSelfJoin
	}

	session.BlackPlayer = &player
	session.Status = model.StatusInProgress
	session.UpdatedAt = s.clock.Now()
	return session.Clone(), nil
}

func (s *Storage) AppendMove(ctx context.Context, id model.SessionID, move model.MoveRecord) (*model.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	if session.Status != model.StatusInProgress {
		return nil, model.ErrSessionNotActive
	}

	session.Moves = append(session.Moves, move)
	session.UpdatedAt = s.clock.Now()
	return session.Clone(), nil
}

func (s *Storage) CompleteSession(ctx context.Context, id model.SessionID, verdict model.Verdict) (*model.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	if session.Status == model.StatusCompleted {
		if session.Verdict != nil && session.Verdict.Equal(verdict) {
			return session.Clone(), nil
		}
		return nil, model.ErrConflictingVerdict
	}
	if session.Status != model.StatusInProgress {
		return nil, model.ErrSessionNotActive
	}

	session.Status = model.StatusCompleted
	session.Verdict = &verdict
	session.UpdatedAt = s.clock.Now()
	return session.Clone(), nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
