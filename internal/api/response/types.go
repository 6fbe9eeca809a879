package response

import (
	"time"

	"github.com/gambitchess/gambit/internal/model"
	"github.com/gambitchess/gambit/internal/services/auth"
)

// User represents a user in API responses
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
	IsGuest     bool   `json:"is_guest"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User) User {
	return User{
		ID:          string(u.ID),
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Rating:      u.Rating,
		IsGuest:     u.IsGuest,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// AuthResponseFromResult creates an AuthResponse from an auth result
func AuthResponseFromResult(a *auth.Auth) AuthResponse {
	return AuthResponse{
		Token: a.Token,
		User:  UserFromModel(&a.User),
	}
}

// Move represents a stored move in API responses
type Move struct {
	Player   string    `json:"player"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Piece    string    `json:"piece,omitempty"`
	PlayedAt time.Time `json:"played_at"`
}

// Verdict represents a terminal outcome in API responses
type Verdict struct {
	Winner *string `json:"winner"`
	Reason string  `json:"reason"`
}

// Session represents a game session in API responses
type Session struct {
	ID          string    `json:"id"`
	WhitePlayer string    `json:"white_player"`
	BlackPlayer *string   `json:"black_player"`
	Status      string    `json:"status"`
	Moves       []Move    `json:"moves"`
	Verdict     *Verdict  `json:"verdict,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SessionFromModel converts a model.GameSession to a response Session
func SessionFromModel(s *model.GameSession) Session {
	var black *string
	if s.BlackPlayer != nil {
		b := string(*s.BlackPlayer)
		black = &b
	}

	moves := make([]Move, len(s.Moves))
	for i, m := range s.Moves {
		moves[i] = Move{
			Player:   string(m.Player),
			From:     m.From,
			To:       m.To,
			Piece:    m.Piece,
			PlayedAt: m.PlayedAt,
		}
	}

	var verdict *Verdict
	if s.Verdict != nil {
		v := Verdict{Reason: s.Verdict.Reason}
		if s.Verdict.Winner != "" {
			w := string(s.Verdict.Winner)
			v.Winner = &w
		}
		verdict = &v
	}

	return Session{
		ID:          string(s.ID),
		WhitePlayer: string(s.WhitePlayer),
		BlackPlayer: black,
		Status:      string(s.Status),
		Moves:       moves,
		Verdict:     verdict,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
