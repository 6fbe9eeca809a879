package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case User:
		o.printUser(v)
	case AuthResult:
		o.printAuthResult(v)
	case Session:
		o.printSession(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// User response type (matches API)
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
	IsGuest     bool   `json:"is_guest"`
}

// AuthResult combines user and token
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Move response type
type Move struct {
	Player   string    `json:"player"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Piece    string    `json:"piece,omitempty"`
	PlayedAt time.Time `json:"played_at"`
}

// Verdict response type
type Verdict struct {
	Winner *string `json:"winner"`
	Reason string  `json:"reason"`
}

// Session response type
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

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printUser(u User) {
	guestStr := "no"
	if u.IsGuest {
		guestStr = "yes"
	}
	fmt.Printf("User: %s (%s)\n", u.Username, u.ID)
	fmt.Printf("Rating: %d\n", u.Rating)
	fmt.Printf("Guest: %s\n", guestStr)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printUser(a.User)
	fmt.Printf("Token: %s\n", a.Token)
}

func (o *Output) printSession(s Session) {
	fmt.Printf("Session: %s\n", s.ID)
	fmt.Printf("Status: %s\n", s.Status)
	fmt.Printf("White: %s\n", s.WhitePlayer)
	if s.BlackPlayer != nil {
		fmt.Printf("Black: %s\n", *s.BlackPlayer)
	} else {
		fmt.Println("Black: (waiting for opponent)")
	}

	if len(s.Moves) > 0 {
		fmt.Printf("Moves (%d):\n", len(s.Moves))
		for i, m := range s.Moves {
			fmt.Printf("  %d. %s %s-%s\n", i+1, m.Player, m.From, m.To)
		}
	}

	if s.Verdict != nil {
		if s.Verdict.Winner != nil {
			fmt.Printf("Winner: %s (%s)\n", *s.Verdict.Winner, s.Verdict.Reason)
		} else {
			fmt.Printf("Result: draw (%s)\n", s.Verdict.Reason)
		}
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
}
