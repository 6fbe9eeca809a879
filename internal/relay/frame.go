package relay

import (
	"encoding/json"
	"time"

	"github.com/gambitchess/gambit/internal/model"
)

// Frame types exchanged over the real-time channel
const (
	FrameMove   = "move"
	FrameResign = "resign"
	FramePing   = "ping"
	FramePong   = "pong"
	FrameState  = "state"
	FrameError  = "error"
)

// Frame is the envelope for every message on the real-time channel
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MovePayload is the payload of a move frame. Relayed verbatim; the server
// does not interpret the squares or piece.
type MovePayload struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Piece string `json:"piece,omitempty"`
}

// ErrorPayload is the payload of an error frame sent back to the sender
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionState is the session snapshot carried by a state frame
type SessionState struct {
	ID          string             `json:"id"`
	WhitePlayer string             `json:"white_player"`
	BlackPlayer *string            `json:"black_player"`
	Status      string             `json:"status"`
	Moves       []model.MoveRecord `json:"moves"`
	Verdict     *model.Verdict     `json:"verdict,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// StateFromModel builds a SessionState snapshot from a session record
func StateFromModel(s *model.GameSession) SessionState {
	var black *string
	if s.BlackPlayer != nil {
		b := string(*s.BlackPlayer)
		black = &b
	}
	moves := s.Moves
	if moves == nil {
		moves = []model.MoveRecord{}
	}
	return SessionState{
		ID:          string(s.ID),
		WhitePlayer: string(s.WhitePlayer),
		BlackPlayer: black,
		Status:      string(s.Status),
		Moves:       moves,
		Verdict:     s.Verdict,
		UpdatedAt:   s.UpdatedAt,
	}
}

// marshalFrame encodes a frame with the given payload value
func marshalFrame(frameType string, payload any) []byte {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	data, _ := json.Marshal(Frame{Type: frameType, Payload: raw})
	return data
}

// StateFrame encodes a state frame for the given session
func StateFrame(s *model.GameSession) []byte {
	return marshalFrame(FrameState, StateFromModel(s))
}

// ErrorFrame encodes an error frame
func ErrorFrame(code, message string) []byte {
	return marshalFrame(FrameError, ErrorPayload{Code: code, Message: message})
}

// MoveFrame encodes a move frame from a stored move record
func MoveFrame(m model.MoveRecord) []byte {
	return marshalFrame(FrameMove, MovePayload{From: m.From, To: m.To, Piece: m.Piece})
}
