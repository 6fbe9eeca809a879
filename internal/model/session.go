package model

import "time"

// SessionID uniquely identifies a game session
type SessionID string

// SessionStatus represents the lifecycle phase of a session
type SessionStatus string

const (
	StatusWaiting    SessionStatus = "waiting"     // Created, second player not yet joined
	StatusInProgress SessionStatus = "in_progress" // Both players present, moves flowing
	StatusCompleted  SessionStatus = "completed"   // Terminal; verdict recorded
)

// MoveRecord is one relayed move as stored in the session's move log.
// The server does not validate legality; the fields are carried verbatim.
type MoveRecord struct {
	Player   UserID    `json:"player"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Piece    string    `json:"piece,omitempty"`
	PlayedAt time.Time `json:"played_at"`
}

// Verdict is the terminal outcome of a session.
// Winner is empty for a draw. Reason is opaque to the server
// ("resignation", "checkmate", "draw", ...).
type Verdict struct {
	Winner UserID `json:"winner,omitempty"`
	Reason string `json:"reason"`
}

// Equal reports whether two verdicts describe the same outcome
func (v Verdict) Equal(other Verdict) bool {
	return v.Winner == other.Winner && v.Reason == other.Reason
}

// GameSession represents a single two-player game
type GameSession struct {
	ID          SessionID
	WhitePlayer UserID
	BlackPlayer *UserID // nil until a second player joins
	Moves       []MoveRecord
	Status      SessionStatus
	Verdict     *Verdict // nil until completed
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPlayer reports whether the given user is one of the session's players
func (s *GameSession) HasPlayer(id UserID) bool {
	if s.WhitePlayer == id {
		return true
	}
	return s.BlackPlayer != nil && *s.BlackPlayer == id
}

// Opponent returns the other player, or empty if the given user is not a
// player or no opponent has joined yet
func (s *GameSession) Opponent(id UserID) UserID {
	if s.WhitePlayer == id {
		if s.BlackPlayer != nil {
			return *s.BlackPlayer
		}
		return ""
	}
	if s.BlackPlayer != nil && *s.BlackPlayer == id {
		return s.WhitePlayer
	}
	return ""
}

// Clone returns a deep copy of the session.
// Stores hand out clones so callers can never mutate shared state.
func (s *GameSession) Clone() *GameSession {
	c := *s
	if s.BlackPlayer != nil {
		bp := *s.BlackPlayer
		c.BlackPlayer = &bp
	}
	if s.Verdict != nil {
		v := *s.Verdict
		c.Verdict = &v
	}
	if s.Moves != nil {
		c.Moves = make([]MoveRecord, len(s.Moves))
		copy(c.Moves, s.Moves)
	}
	return &c
}
